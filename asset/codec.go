package asset

import (
	"bytes"
	"io"
	"os"

	"gopkg.in/yaml.v2"
)

func ReadSkeletonRecord(r io.Reader) (*SkeletonRecord, error) {
	var rec SkeletonRecord
	if err := yaml.NewDecoder(r).Decode(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func ReadMapperRecord(r io.Reader) (*MapperRecord, error) {
	var rec MapperRecord
	if err := yaml.NewDecoder(r).Decode(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func WriteRecord(w io.Writer, rec interface{}) error {
	enc := yaml.NewEncoder(w)
	if err := enc.Encode(rec); err != nil {
		return err
	}
	return enc.Close()
}

func readFile[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	f, err := os.Open(path)
	if err != nil {
		var zero T
		return zero, err
	}
	defer f.Close()
	return read(f)
}

// writeFile writes rec to path through a buffer so a failed encode does not
// truncate an existing file.
func writeFile(path string, rec interface{}) error {
	var buf bytes.Buffer
	if err := WriteRecord(&buf, rec); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}
