package interact

import "io"

// asyncReader adapts a blocking io.Reader (e.g. os.Stdin) to the
// non-blocking tryRead shape the relay loop needs. The goroutine here
// only ever feeds a channel; it exists because an arbitrary io.Reader,
// unlike the PTY master, has no deadline-based non-blocking read.
type asyncReader struct {
	ch    chan []byte
	errCh chan error
}

func newAsyncReader(r io.Reader) *asyncReader {
	ar := &asyncReader{
		ch:    make(chan []byte, 64),
		errCh: make(chan error, 1),
	}
	go ar.pump(r)
	return ar
}

func (ar *asyncReader) pump(r io.Reader) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := append([]byte(nil), buf[:n]...)
			ar.ch <- data
		}
		if err != nil {
			ar.errCh <- err
			return
		}
	}
}

// tryRead returns the next chunk (or terminal error) without blocking if
// neither is ready yet.
func (ar *asyncReader) tryRead() (data []byte, err error, got bool) {
	select {
	case data := <-ar.ch:
		return data, nil, true
	case err := <-ar.errCh:
		return nil, err, true
	default:
		return nil, nil, false
	}
}
