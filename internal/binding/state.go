package binding

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// StateBuffer is a raw dump of a context's runtime state: no header, no
// version. Its length equals the context state size at capture time and it
// only fits contexts built with the same model and context parameters.
type StateBuffer []byte

// StateSize returns the number of bytes the context currently needs.
func (b *BoundModel) StateSize() (int, error) {
	if err := b.live("state size"); err != nil {
		return 0, err
	}
	return b.ctx.StateSize(), nil
}

// CaptureState copies the full runtime state of the context into a new buffer.
func (b *BoundModel) CaptureState() (StateBuffer, error) {
	const op = "capture state"
	if err := b.live(op); err != nil {
		return nil, err
	}
	size := b.ctx.StateSize()
	buf := make(StateBuffer, size)
	if n := b.ctx.CopyState(buf); n != size {
		return nil, fail(newError(ShortRead, op, fmt.Sprintf("engine copied %d of %d state bytes", n, size), nil))
	}
	stateBytesTotal.WithLabelValues("capture").Add(float64(size))
	return buf, nil
}

// RestoreState installs buf as the context's runtime state. A buffer whose
// length differs from the current state size is rejected and the context is
// left untouched.
func (b *BoundModel) RestoreState(buf StateBuffer) error {
	const op = "restore state"
	if err := b.live(op); err != nil {
		return err
	}
	return b.install(op, buf, b.ctx.StateSize())
}

// install is the single check-then-use step of a restore: required is
// computed once by the caller and compared here right before SetState.
func (b *BoundModel) install(op string, buf StateBuffer, required int) error {
	if len(buf) != required {
		return fail(newError(StateSizeMismatch, op, fmt.Sprintf("state buffer is %d bytes, context requires %d", len(buf), required), nil))
	}
	if n := b.ctx.SetState(buf); n != required {
		return fail(newError(EngineFailure, op, fmt.Sprintf("engine accepted %d of %d state bytes", n, required), nil))
	}
	stateBytesTotal.WithLabelValues("restore").Add(float64(required))
	return nil
}

// SaveStateFile captures the state and writes it to path. mode follows
// fopen(3): "w", "wb", "a", "ab", "w+", "wx"...; empty means "wb".
func (b *BoundModel) SaveStateFile(path, mode string) (err error) {
	const op = "save state"
	if err := b.live(op); err != nil {
		return err
	}
	flag, err := openFlags(op, mode, true)
	if err != nil {
		return err
	}
	buf, err := b.CaptureState()
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return fail(newError(IOFailure, op, "open "+path, err))
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fail(newError(IOFailure, op, "close "+path, cerr))
		}
	}()
	n, werr := f.Write(buf)
	if n != len(buf) {
		return fail(newError(ShortWrite, op, fmt.Sprintf("wrote %d of %d state bytes to %s", n, len(buf), path), werr))
	}
	if werr != nil {
		return fail(newError(IOFailure, op, "write "+path, werr))
	}
	zlog.Debug().Str("path", path).Int("bytes", n).Msg("state saved")
	return nil
}

// LoadStateFile reads exactly one state dump from path and installs it. mode
// follows fopen(3) and must allow reading; empty means "rb". A file shorter
// than the required state size fails with ShortRead, a longer one with
// StateSizeMismatch; in both cases the context is not modified.
func (b *BoundModel) LoadStateFile(path, mode string) error {
	const op = "load state"
	if err := b.live(op); err != nil {
		return err
	}
	flag, err := openFlags(op, mode, false)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return fail(newError(IOFailure, op, "open "+path, err))
	}
	defer f.Close()

	required := b.ctx.StateSize()
	buf := make(StateBuffer, required)
	n, err := io.ReadFull(f, buf)
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return fail(newError(ShortRead, op, fmt.Sprintf("read %d of %d state bytes from %s", n, required, path), err))
	case err != nil:
		return fail(newError(IOFailure, op, "read "+path, err))
	}
	var extra [1]byte
	if m, _ := f.Read(extra[:]); m > 0 {
		return fail(newError(StateSizeMismatch, op, fmt.Sprintf("%s holds more than the %d bytes the context requires", path, required), nil))
	}
	return b.install(op, buf, required)
}

// openFlags translates an fopen(3) mode string into os.OpenFile flags.
func openFlags(op, mode string, write bool) (int, error) {
	if mode == "" {
		if write {
			mode = "wb"
		} else {
			mode = "rb"
		}
	}
	plus := strings.Contains(mode, "+")
	excl := strings.Contains(mode, "x")
	for _, r := range mode[1:] {
		if r != 'b' && r != 't' && r != '+' && r != 'x' {
			return 0, fail(newError(ConfigInvalid, op, fmt.Sprintf("invalid file mode %q", mode), nil))
		}
	}
	var flag int
	switch mode[0] {
	case 'r':
		flag = os.O_RDONLY
		if plus {
			flag = os.O_RDWR
		}
	case 'w':
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		if plus {
			flag = os.O_RDWR | os.O_CREATE | os.O_TRUNC
		}
	case 'a':
		flag = os.O_WRONLY | os.O_CREATE | os.O_APPEND
		if plus {
			flag = os.O_RDWR | os.O_CREATE | os.O_APPEND
		}
	default:
		return 0, fail(newError(ConfigInvalid, op, fmt.Sprintf("invalid file mode %q", mode), nil))
	}
	if excl {
		if mode[0] != 'w' {
			return 0, fail(newError(ConfigInvalid, op, fmt.Sprintf("file mode %q: x is only valid with w", mode), nil))
		}
		flag |= os.O_EXCL
	}
	canRead := mode[0] == 'r' || plus
	canWrite := mode[0] != 'r' || plus
	if write && !canWrite {
		return 0, fail(newError(ConfigInvalid, op, fmt.Sprintf("file mode %q does not allow writing", mode), nil))
	}
	if !write && !canRead {
		return 0, fail(newError(ConfigInvalid, op, fmt.Sprintf("file mode %q does not allow reading", mode), nil))
	}
	return flag, nil
}
