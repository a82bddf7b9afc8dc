package fio

// IOManager is the file a container is written to or read from.
// Writes always append; Read is positional.
type IOManager interface {
	Read(buf []byte, offset int64) (int, error)
	Write(data []byte) (int, error)
	Sync() error
	Close() error
	Size() (int64, error)
}
