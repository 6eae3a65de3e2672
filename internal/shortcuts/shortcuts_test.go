/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package shortcuts

import "testing"

func TestResolve(t *testing.T) {
	cases := []struct {
		k    Key
		want Action
	}{
		{Key{Code: "z", Ctrl: true}, Undo},
		{Key{Code: "Z", Meta: true}, Undo},
		{Key{Code: "z", Ctrl: true, Shift: true}, Redo},
		{Key{Code: "y", Ctrl: true}, Redo},
		{Key{Code: "Backspace"}, Delete},
		{Key{Code: "Delete"}, Delete},
		{Key{Code: "z"}, NoAction},
		{Key{Code: "x", Ctrl: true}, NoAction},
		{Key{Code: "Backspace", InputFocused: true}, NoAction},
		{Key{Code: "z", Ctrl: true, InputFocused: true}, NoAction},
	}
	for _, c := range cases {
		if got := Resolve(c.k); got != c.want {
			t.Fatalf("Resolve(%+v) = %v, want %v", c.k, got, c.want)
		}
	}
}

func TestBusDispatch(t *testing.T) {
	var b Bus
	var undos, redos, dels int
	b.RegisterUndoRedo(func() { undos++ }, func() { redos++ })
	b.RegisterDelete(func() { dels++ })

	b.Dispatch(Key{Code: "z", Ctrl: true})
	b.Dispatch(Key{Code: "y", Ctrl: true})
	b.Dispatch(Key{Code: "Delete"})
	if undos != 1 || redos != 1 || dels != 1 {
		t.Fatalf("unexpected counts: %d %d %d", undos, redos, dels)
	}
	if b.Dispatch(Key{Code: "q"}) {
		t.Fatalf("unbound key should not dispatch")
	}

	b.SetEnabled(false)
	if b.Dispatch(Key{Code: "Delete"}) {
		t.Fatalf("disabled bus dispatched")
	}
	b.SetEnabled(true)
}

func TestLatestRegistrationWins(t *testing.T) {
	var b Bus
	var first, second int
	unregFirst := b.RegisterUndoRedo(func() { first++ }, func() {})
	unregSecond := b.RegisterUndoRedo(func() { second++ }, func() {})

	// A stale unregister must not remove the newer editor.
	unregFirst()
	b.Dispatch(Key{Code: "z", Ctrl: true})
	if first != 0 || second != 1 {
		t.Fatalf("expected only second editor, got %d %d", first, second)
	}
	unregSecond()
	if b.Dispatch(Key{Code: "z", Ctrl: true}) {
		t.Fatalf("handler still registered after unregister")
	}

	unregDel := b.RegisterDelete(func() {})
	unregDel()
	if b.Dispatch(Key{Code: "Delete"}) {
		t.Fatalf("delete still registered")
	}
}

func TestDefaultIsSingleton(t *testing.T) {
	if Default() != Default() {
		t.Fatalf("Default should return one bus")
	}
}
