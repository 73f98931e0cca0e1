// Package hal holds what the VM frontends have in common: the control flow
// errors they return from ReadInput and the keyboard layout.
package hal

import (
	"errors"
	"unicode"

	"github.com/kapitanov/chip8/internal/vm"
)

var (
	ErrReboot = errors.New("reboot")
	ErrQuit   = errors.New("quit")
)

// KeyForRune maps a key of a QWERTY keyboard onto the hex keypad.
//
//	Physical                Logical
//	================        =================
//	| 1 | 2 | 3 | 4 |       | 1 | 2 | 3 | C |
//	| q | w | e | r |       | 4 | 5 | 6 | D |
//	| a | s | d | f |  <=>  | 7 | 8 | 9 | E |
//	| z | x | c | v |       | A | 0 | B | F |
//	================        =================
func KeyForRune(r rune) (vm.Key, bool) {
	switch unicode.ToLower(r) {
	case 'x':
		return vm.Key0, true
	case '1':
		return vm.Key1, true
	case '2':
		return vm.Key2, true
	case '3':
		return vm.Key3, true
	case 'q':
		return vm.Key4, true
	case 'w':
		return vm.Key5, true
	case 'e':
		return vm.Key6, true
	case 'a':
		return vm.Key7, true
	case 's':
		return vm.Key8, true
	case 'd':
		return vm.Key9, true
	case 'z':
		return vm.KeyA, true
	case 'c':
		return vm.KeyB, true
	case '4':
		return vm.KeyC, true
	case 'r':
		return vm.KeyD, true
	case 'f':
		return vm.KeyE, true
	case 'v':
		return vm.KeyF, true
	default:
		return 0, false
	}
}
