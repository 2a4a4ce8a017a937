//go:build !windows

package fifo

import (
	"errors"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

func ensureFIFO(path string) error {
	fi, err := os.Stat(path)
	if err == nil {
		if fi.Mode()&os.ModeNamedPipe != 0 {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	}
	if err := unix.Mkfifo(path, 0o666); err != nil && !errors.Is(err, unix.EEXIST) {
		return err
	}
	return nil
}

// pollFIFO reads one newline-terminated line from the pipe. The read end is
// opened non-blocking and polled so the goroutine can be abandoned cleanly
// when the arm window closes; a blocking open would outlive a timed-out read
// and steal the next case's line.
func pollFIFO(path string, stop <-chan struct{}, lines chan<- string) {
	f, err := os.OpenFile(path, os.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return
	}
	defer f.Close()

	var pending strings.Builder
	buf := make([]byte, 4096)
	for {
		select {
		case <-stop:
			return
		default:
		}
		// Bound each read so the loop keeps observing stop even when the
		// runtime parks the fd in its poller.
		_ = f.SetReadDeadline(time.Now().Add(pollInterval))
		n, err := f.Read(buf)
		if n > 0 {
			pending.Write(buf[:n])
			acc := pending.String()
			if idx := strings.IndexByte(acc, '\n'); idx >= 0 {
				select {
				case lines <- acc[:idx]:
				case <-stop:
				}
				return
			}
		}
		if n == 0 && err != nil && !os.IsTimeout(err) {
			// EOF means no writer has the pipe open yet; EAGAIN means no
			// data. Either way, back off briefly and retry.
			time.Sleep(pollInterval)
		}
	}
}

func writeFIFO(path, data string) error {
	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return err
	}
	defer unix.Close(fd)
	_, err = unix.Write(fd, []byte(data))
	return err
}
