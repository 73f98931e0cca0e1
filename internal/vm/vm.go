package vm

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Config tunes a VM. The zero value of each field selects its default.
type Config struct {
	// ClockHz is the instruction rate.
	ClockHz int
	// TimerHz is the rate at which the delay and sound timers decay.
	TimerHz int
	// DisplayPolicy decides how sprites crossing the screen edge are drawn.
	DisplayPolicy DisplayPolicy
	// Seed seeds the random number generator used by Cxkk. Zero picks a
	// time based seed.
	Seed uint64
	// Clock paces execution. Defaults to SystemClock.
	Clock Clock
}

const (
	DefaultClockHz = 540
	DefaultTimerHz = 60

	// MaxClockHz bounds ClockHz and TimerHz; one period is at least a
	// nanosecond.
	MaxClockHz = int(time.Second)
)

func DefaultConfig() Config {
	return Config{
		ClockHz:       DefaultClockHz,
		TimerHz:       DefaultTimerHz,
		DisplayPolicy: PolicyLinear,
		Clock:         SystemClock,
	}
}

func (c Config) withDefaults() Config {
	if c.ClockHz <= 0 {
		c.ClockHz = DefaultClockHz
	}
	if c.TimerHz <= 0 {
		c.TimerHz = DefaultTimerHz
	}
	c.ClockHz = min(c.ClockHz, MaxClockHz)
	c.TimerHz = min(c.TimerHz, MaxClockHz)
	if c.Clock == nil {
		c.Clock = SystemClock
	}
	return c
}

// HAL is the device side of the VM: a screen and a keypad.
type HAL interface {
	// ReadInput reports keys pressed and released since the last call.
	ReadInput(keyDown func(Key), keyUp func(Key)) error
	// Draw presents a ScreenWidth*ScreenHeight frame, one byte per pixel.
	Draw(gfx []uint8) error
}

type runState int

const (
	stateRunning runState = iota
	stateAwaitingKey
	stateIdle
	stateFaulted
)

var stateNames = [...]string{"running", "awaiting key", "idle", "faulted"}

func (s runState) String() string {
	return stateNames[s]
}

type VM struct {
	config  Config
	machine Machine
	display *Display
	set     *instructionSet
	keypad  keypad
	rng     *rand.Rand
	seed    uint64

	state   runState
	waitReg uint8 // register receiving the key while awaiting one
	fault   error

	start      time.Time
	cycles     uint64 // instructions accounted for since start
	timerTicks uint64 // timer periods accounted for since start
	cpu        cadence
	timers     cadence

	program []byte
}

func New(program []byte, config Config) *VM {
	config = config.withDefaults()

	seed := config.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	vm := &VM{
		config:  config,
		display: NewDisplay(config.DisplayPolicy),
		set:     baseInstructions,
		seed:    seed,
		cpu:     cadence{hz: config.ClockHz},
		timers:  cadence{hz: config.TimerHz},
		program: program,
	}
	vm.Reset()
	return vm
}

// Reset returns the machine to its power-on state with the program loaded.
func (vm *VM) Reset() {
	vm.machine.Reset()
	vm.rng = rand.New(rand.NewPCG(vm.seed, vm.seed))
	slog.Debug("load font", "at", fmt.Sprintf("0x%04x", FontStart), "n", len(chip8Font))

	n := vm.machine.Load(vm.program)
	slog.Info("load program", "at", fmt.Sprintf("0x%04x", ProgramStart), "n", n)
	if n < len(vm.program) {
		slog.Warn("program truncated", "size", len(vm.program), "loaded", n)
	}

	vm.display.Clear()
	vm.keypad = keypad{}
	vm.state = stateRunning
	vm.fault = nil

	vm.start = vm.config.Clock.Now()
	vm.cycles = 0
	vm.timerTicks = 0
}

// Run executes the program until ctx is done, the HAL reports an error or
// the program faults. It starts from a freshly reset machine.
func (vm *VM) Run(ctx context.Context, hal HAL) error {
	vm.Reset()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := vm.runSlice(hal); err != nil {
			return err
		}
	}
}

// runSlice catches the machine up with the clock: due timer ticks, due
// instructions, presentation and input. It then sleeps until the next
// instruction or timer tick is due.
func (vm *VM) runSlice(hal HAL) error {
	now := vm.config.Clock.Now()
	elapsed := now.Sub(vm.start)

	ticked := vm.updateTimers(elapsed)

	if err := vm.execute(elapsed); err != nil {
		// show the frame the program faulted on
		_ = vm.present(hal)
		return err
	}

	if ticked || vm.state != stateRunning {
		if err := vm.present(hal); err != nil {
			return err
		}

		if err := hal.ReadInput(vm.keyDown, vm.keyUp); err != nil {
			return err
		}
	}

	vm.config.Clock.Sleep(vm.untilNextEvent(vm.config.Clock.Now().Sub(vm.start)))
	return nil
}

// maxTimerBacklog bounds how many missed timer periods are replayed after a
// stall; 8-bit timers are empty after that many anyway.
const maxTimerBacklog = 255

func (vm *VM) updateTimers(elapsed time.Duration) bool {
	due := vm.timers.periods(elapsed)
	if due <= vm.timerTicks {
		return false
	}

	if due-vm.timerTicks > maxTimerBacklog {
		vm.timerTicks = due - maxTimerBacklog
	}

	for ; vm.timerTicks < due; vm.timerTicks++ {
		vm.machine.TickTimers()
	}
	return true
}

// execute runs the instructions due by elapsed. A suspended machine does
// not accumulate a backlog, and neither does one that fell further behind
// than a tenth of a second.
func (vm *VM) execute(elapsed time.Duration) error {
	due := vm.cpu.periods(elapsed)

	maxBacklog := max(uint64(vm.config.ClockHz/10), 1)
	if due > vm.cycles+maxBacklog {
		vm.cycles = due - maxBacklog
	}

	for ; vm.cycles < due; vm.cycles++ {
		if vm.state != stateRunning {
			vm.cycles = due
			break
		}

		if err := vm.Step(); err != nil {
			return err
		}
	}

	return vm.fault
}

func (vm *VM) untilNextEvent(elapsed time.Duration) time.Duration {
	next := vm.timers.at(vm.timerTicks + 1)
	if vm.state == stateRunning {
		if cpu := vm.cpu.at(vm.cycles + 1); cpu < next {
			next = cpu
		}
	}

	if next <= elapsed {
		return 0
	}
	return next - elapsed
}

func (vm *VM) present(hal HAL) error {
	if !vm.display.Dirty() {
		return nil
	}

	if err := hal.Draw(vm.display.Pixels()); err != nil {
		return err
	}
	vm.display.MarkPresented()
	return nil
}

// Step fetches, decodes and executes a single instruction. It does nothing
// while the machine is suspended and keeps returning the fault once the
// machine has faulted.
func (vm *VM) Step() error {
	if vm.state != stateRunning {
		return vm.fault
	}

	pc := vm.machine.PC()

	opcode, err := vm.machine.Fetch()
	if err != nil {
		return vm.raise(&Fault{Address: pc, Err: err})
	}

	instr, ok := vm.set.decode(opcode)
	if !ok {
		return vm.raise(&Fault{Address: pc, Opcode: opcode, Err: ErrDecode})
	}

	f := instr.Fields(opcode)

	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		slog.Debug(
			"exec",
			"pc", fmt.Sprintf("0x%04x", pc),
			"opcode", fmt.Sprintf("0x%04x", opcode),
			"instr", instr.Name(f),
		)
	}

	if err := instr.Execute(vm, f); err != nil {
		return vm.raise(&Fault{Address: pc, Opcode: opcode, Err: err})
	}

	vm.machine.AdvancePC()
	return nil
}

func (vm *VM) raise(fault *Fault) error {
	slog.Error("machine fault", "pc", fmt.Sprintf("0x%04x", fault.Address), "opcode", fmt.Sprintf("0x%04x", fault.Opcode), "err", fault.Err)
	vm.state = stateFaulted
	vm.fault = fault
	return fault
}

// idle parks the machine after the program jumped onto itself. Timers,
// input and presentation keep running.
func (vm *VM) idle() {
	slog.Info("program looped", "pc", fmt.Sprintf("0x%04x", vm.machine.PC()))
	vm.state = stateIdle
}

// awaitKey suspends instruction fetching until the next key press, which
// is then stored in Vx.
func (vm *VM) awaitKey(x uint8) {
	slog.Debug("await key", "reg", fmt.Sprintf("v%x", x))
	vm.state = stateAwaitingKey
	vm.waitReg = x
}

func (vm *VM) keyDown(key Key) {
	vm.keypad.set(key, true)

	if vm.state == stateAwaitingKey && int(key) < KeyCount {
		vm.machine.SetRegister(vm.waitReg, uint8(key))
		vm.state = stateRunning
	}
}

func (vm *VM) keyUp(key Key) {
	vm.keypad.set(key, false)
}

// Display returns the frame buffer.
func (vm *VM) Display() *Display {
	return vm.display
}

// SoundActive reports whether the sound timer is running.
func (vm *VM) SoundActive() bool {
	return vm.machine.SoundTimer() > 0
}

// Fault returns the error that stopped the machine, if any.
func (vm *VM) Fault() error {
	return vm.fault
}
