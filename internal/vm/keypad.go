package vm

const KeyCount = 16

type Key uint8

const (
	Key0 = Key(iota)
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	KeyA
	KeyB
	KeyC
	KeyD
	KeyE
	KeyF
)

// keypad tracks which of the 16 hex keys are held down.
type keypad [KeyCount]bool

// pressed reports whether key k is down. Values outside the key space are
// never pressed.
func (kp *keypad) pressed(k uint8) bool {
	if int(k) >= KeyCount {
		return false
	}
	return kp[k]
}

func (kp *keypad) set(k Key, down bool) {
	if int(k) < KeyCount {
		kp[k] = down
	}
}
