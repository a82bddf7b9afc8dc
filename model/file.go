package model

import "github.com/cqkv/clipring/fio"

// SampleFile is an exported clip on disk.
type SampleFile struct {
	Path        string
	WriteOffset int64
	Samples     int64
	IoManager   fio.IOManager
}

func OpenSampleFile(path string, ioManager fio.IOManager) *SampleFile {
	return &SampleFile{
		Path:      path,
		IoManager: ioManager,
	}
}

func (sf *SampleFile) Sync() error {
	return sf.IoManager.Sync()
}

func (sf *SampleFile) Close() error {
	return sf.IoManager.Close()
}

// Write binary data into file
func (sf *SampleFile) Write(data []byte) error {
	size, err := sf.IoManager.Write(data)
	if err != nil {
		return err
	}
	sf.WriteOffset += int64(size)
	return nil
}

// ReadSampleHeader returns at most MaxSampleHeaderSize bytes starting at offset.
func (sf *SampleFile) ReadSampleHeader(offset int64) ([]byte, error) {
	fileSize, err := sf.IoManager.Size()
	if err != nil {
		return nil, err
	}

	var headerBuf int64 = MaxSampleHeaderSize
	if headerBuf+offset > fileSize {
		headerBuf = fileSize - offset
	}

	return sf.readNBytes(offset, headerBuf)
}

func (sf *SampleFile) ReadAt(off, size int64) (data []byte, err error) {
	return sf.readNBytes(off, size)
}

func (sf *SampleFile) Size() (int64, error) {
	return sf.IoManager.Size()
}

func (sf *SampleFile) readNBytes(offset, n int64) ([]byte, error) {
	buf := make([]byte, n)
	_, err := sf.IoManager.Read(buf, offset)
	if err != nil {
		return nil, err
	}
	return buf, nil
}
