// Package form はサインイン・登録フォームの検証と送信の流れを提供する。
package form

import "fmt"

// State はフォームの状態。
type State int

const (
	StateIdle State = iota
	StateValidating
	StateSubmitting
	StateSuccess
	StateError
)

// String はログ出力用の状態名を返す。
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateSubmitting:
		return "submitting"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// 許可される遷移
var transitions = map[State][]State{
	StateIdle:       {StateValidating},
	StateValidating: {StateIdle, StateSubmitting},
	StateSubmitting: {StateSuccess, StateError},
	StateSuccess:    {StateIdle},
	StateError:      {StateIdle},
}

// Machine は1回の送信の状態遷移を記録する。
// 送信ごとに生成し、goroutine間で共有しない。
type Machine struct {
	state   State
	history []State
}

// NewMachine はidle状態のMachineを生成する。
func NewMachine() *Machine {
	return &Machine{state: StateIdle, history: []State{StateIdle}}
}

// State は現在の状態を返す。
func (m *Machine) State() State {
	return m.state
}

// History はこれまでに通過した状態を返す。
func (m *Machine) History() []State {
	out := make([]State, len(m.history))
	copy(out, m.history)
	return out
}

// To は状態を遷移させる。許可されない遷移はエラーを返す。
func (m *Machine) To(next State) error {
	for _, s := range transitions[m.state] {
		if s == next {
			m.state = next
			m.history = append(m.history, next)
			return nil
		}
	}
	return fmt.Errorf("invalid form transition: %s -> %s", m.state, next)
}
