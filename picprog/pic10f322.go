package picprog

import (
	"fmt"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/valerio/go-picprog/picprog/bit"
	"github.com/valerio/go-picprog/picprog/device"
	"github.com/valerio/go-picprog/picprog/gpio"
	"github.com/valerio/go-picprog/picprog/hexfile"
	"github.com/valerio/go-picprog/picprog/icsp"
	"github.com/valerio/go-picprog/picprog/memory"
	"github.com/valerio/go-picprog/picprog/progress"
)

// PIC10F322 drives the enhanced midrange parts that share the 6 bit
// command, 16 bit data ICSP variant with a 16 word programming row.
type PIC10F322 struct {
	port    gpio.Port
	session *icsp.Session
	flags   Flags
	logger  *slog.Logger
	report  progress.Reporter
	devices device.Table

	info  device.Info
	image *memory.Image
}

func newPIC10F322(port gpio.Port, cfg Config) *PIC10F322 {
	devices := cfg.Devices
	if devices == nil {
		devices = device.PIC10F322()
	}
	return &PIC10F322{
		port:    port,
		session: icsp.NewSession(port, cfg.Logger),
		flags:   cfg.Flags,
		logger:  cfg.Logger,
		report:  cfg.Reporter,
		devices: devices,
	}
}

func (p *PIC10F322) EnterProgramMode() error {
	p.session.EnterProgramMode()
	return p.port.Err()
}

func (p *PIC10F322) ExitProgramMode() error {
	p.session.ExitProgramMode()
	return p.port.Err()
}

// Device returns the resolved device, zero before ReadDeviceID.
func (p *PIC10F322) Device() device.Info {
	return p.info
}

func (p *PIC10F322) Image() *memory.Image {
	return p.image
}

// ReadDeviceID reads the ID word and resolves it against the descriptor
// table. On success the working image is allocated over the whole address
// space. On failure any earlier resolution is dropped, so memory operations
// refuse to run until the chip is identified again.
func (p *PIC10F322) ReadDeviceID() (device.Info, error) {
	p.info = device.Info{}
	p.image = nil

	word := p.session.ReadDeviceIDWord()
	if err := p.port.Err(); err != nil {
		return device.Info{}, err
	}

	id := bit.ExtractBits16(word, 13, 5)
	rev := bit.ExtractBits16(word, 4, 0)

	desc, ok := p.devices.Lookup(id)
	if !ok {
		return device.Info{}, &DeviceNotRecognizedError{ID: id, Revision: rev}
	}

	p.info = device.Info{Descriptor: desc, Revision: rev}
	p.image = memory.NewImage(icsp.ProgramMemorySize)
	p.logger.Info("Device resolved", "device", p.info.String(), "words", desc.CodeMemorySize)

	return p.info, nil
}

// BlankCheck scans program memory and stops at the first programmed word.
func (p *PIC10F322) BlankCheck() error {
	if !p.info.Resolved() {
		return ErrDeviceNotResolved
	}

	size := p.info.CodeMemorySize
	tracker := progress.NewTracker(p.report)
	tracker.Start()

	p.session.ResetAddress()
	for addr := 0; addr < size; addr++ {
		data := p.session.ReadWord()
		p.session.IncrementAddress()

		if data != icsp.Blank {
			tracker.Done()
			if err := p.port.Err(); err != nil {
				return err
			}
			return &NotBlankError{Address: uint32(addr) * 2, Value: data}
		}
		tracker.Update(addr+1, size)
	}

	if err := p.port.Err(); err != nil {
		tracker.Done()
		return err
	}
	tracker.Finish()
	return nil
}

// BulkErase erases program memory. There is no erase verify; use
// BlankCheck for that.
func (p *PIC10F322) BulkErase() error {
	if !p.info.Resolved() {
		return ErrDeviceNotResolved
	}

	p.session.BulkErase()
	p.report.Done()
	return p.port.Err()
}

// ReadImage reads count words of program memory from start (0 for the rest
// of memory) and the configuration word into the working image. Only
// non-blank words are filled.
func (p *PIC10F322) ReadImage(start, count int) (*memory.Image, error) {
	if !p.info.Resolved() {
		return nil, ErrDeviceNotResolved
	}

	size := p.info.CodeMemorySize
	if start < 0 || start >= size || count < 0 {
		return nil, errors.Errorf("read range start 0x%X count 0x%X outside of %d words", start, count, size)
	}
	end := size
	if count > 0 && start+count < size {
		end = start + count
	}

	p.image.Clear()
	tracker := progress.NewTracker(p.report)
	tracker.Start()

	p.session.ResetAddress()
	for addr := 0; addr < end; addr++ {
		if addr < start {
			p.session.IncrementAddress()
			continue
		}

		data := p.session.ReadWord()
		p.session.IncrementAddress()
		p.trace("Read", addr, data)

		if data != icsp.Blank {
			p.image.Set(addr, data)
		}
		tracker.Update(addr+1-start, end-start)
	}

	p.session.SeekConfig(icsp.FuseAddress)
	data := p.session.ReadWord()
	p.trace("Read", int(icsp.FuseAddress), data)
	if data != icsp.Blank {
		p.image.Set(int(icsp.FuseAddress), data)
	}

	if err := p.port.Err(); err != nil {
		tracker.Done()
		return nil, err
	}
	tracker.Finish()
	return p.image, nil
}

// Read reads the chip and stores the image as a hex file.
func (p *PIC10F322) Read(path string, start, count int) error {
	img, err := p.ReadImage(start, count)
	if err != nil {
		return err
	}
	return hexfile.Store(path, img)
}

// Write loads a hex file into the working image and programs it.
func (p *PIC10F322) Write(path string) error {
	if !p.info.Resolved() {
		return ErrDeviceNotResolved
	}

	p.image.Clear()
	filled, err := hexfile.Load(path, p.image)
	if err != nil {
		return err
	}
	p.logger.Info("Image loaded", "path", path, "words", filled)

	return p.WriteImage(p.image, filled)
}

// WriteImage erases the chip, programs img row by row, then the
// configuration word, and verifies both unless disabled. filled is the
// number of filled words and scales the progress; 0 counts them from img.
// A verify mismatch aborts at once and leaves the chip partially written.
func (p *PIC10F322) WriteImage(img *memory.Image, filled int) error {
	if !p.info.Resolved() {
		return ErrDeviceNotResolved
	}
	if img.Size() < icsp.ProgramMemorySize {
		return errors.Errorf("image of %d words is smaller than the address space", img.Size())
	}
	if filled <= 0 {
		filled = img.FilledCount()
	}

	total := filled
	if !p.flags.NoVerify {
		total *= 2
	}

	p.session.BulkErase()

	tracker := progress.NewTracker(p.report)
	tracker.Start()

	done := p.program(img, func(n int) { tracker.Update(n, total) })
	if err := p.port.Err(); err != nil {
		tracker.Done()
		return err
	}

	if p.flags.NoVerify {
		tracker.Finish()
		return nil
	}

	if err := p.verify(img, func(n int) { tracker.Update(done+n, total) }); err != nil {
		tracker.Done()
		return err
	}
	tracker.Finish()
	return nil
}

// program writes every row of code memory and then the configuration word.
// It returns the number of filled words written.
func (p *PIC10F322) program(img *memory.Image, update func(done int)) int {
	size := p.info.CodeMemorySize
	done := 0

	p.session.ResetAddress()
	for row := 0; row < size; row += icsp.RowSize {
		for i := 0; i < icsp.RowSize; i++ {
			addr := row + i
			word := img.WordOr(addr, icsp.Blank) & icsp.WordMask
			p.trace("Write", addr, word)

			p.session.LoadWord(word)
			if i == icsp.RowSize-1 {
				// the last latch of the row starts the programming cycle
				p.session.BeginProgramming(icsp.DelayTPINTData)
			}
			p.session.IncrementAddress()

			if img.IsFilled(addr) {
				done++
			}
		}
		update(done)
	}

	// user IDs are not written, only the configuration word
	if fuse, ok := img.Get(int(icsp.FuseAddress)); ok {
		p.session.SeekConfig(icsp.FuseAddress)
		p.trace("Write", int(icsp.FuseAddress), fuse&icsp.WordMask)
		p.session.LoadWord(fuse & icsp.WordMask)
		p.session.BeginProgramming(icsp.DelayTPINTConfig)
		done++
		update(done)
	}

	return done
}

// verify reads code memory back and compares every filled word, then the
// configuration word without its LVP bit.
func (p *PIC10F322) verify(img *memory.Image, update func(done int)) error {
	size := p.info.CodeMemorySize
	done := 0

	p.session.ResetAddress()
	for addr := 0; addr < size; addr++ {
		data := p.session.ReadWord()
		p.session.IncrementAddress()

		expected, ok := img.Get(addr)
		if !ok {
			continue
		}
		expected &= icsp.WordMask
		if p.flags.Debug {
			p.logger.Debug("Verify", "addr", hex4(addr), "pic", hex4(int(data)), "file", hex4(int(expected)))
		}
		if data != expected {
			return p.mismatch(addr, data, expected)
		}
		done++
		update(done)
	}

	fuse, ok := img.Get(int(icsp.FuseAddress))
	if !ok {
		return p.port.Err()
	}
	p.session.SeekConfig(icsp.FuseAddress)
	data := p.session.ReadRaw() & icsp.FuseVerifyMask
	expected := fuse & icsp.FuseVerifyMask
	if p.flags.Debug {
		p.logger.Debug("Verify", "addr", hex4(int(icsp.FuseAddress)), "pic", hex4(int(data)), "file", hex4(int(expected)))
	}
	if data != expected {
		return p.mismatch(int(icsp.FuseAddress), data, expected)
	}
	update(done + 1)

	return p.port.Err()
}

func (p *PIC10F322) mismatch(addr int, data, expected uint16) error {
	if err := p.port.Err(); err != nil {
		return err
	}
	p.logger.Error("Verify failed", "addr", hex4(addr), "pic", hex4(int(data)), "file", hex4(int(expected)))
	return &VerifyMismatchError{Address: uint16(addr), Read: data, Expected: expected}
}

// DumpConfigurationRegisters reads CONFIG1. It only needs program mode, not
// a resolved device.
func (p *PIC10F322) DumpConfigurationRegisters() (uint16, error) {
	p.session.SeekConfig(icsp.FuseAddress)
	word := p.session.ReadRaw() & icsp.Config1Mask
	if err := p.port.Err(); err != nil {
		return 0, err
	}
	return word, nil
}

func (p *PIC10F322) trace(msg string, addr int, data uint16) {
	if p.flags.Debug {
		p.logger.Debug(msg, "addr", hex4(addr), "data", hex4(int(data)))
	}
}

func hex4(v int) string {
	return fmt.Sprintf("0x%04X", v)
}
