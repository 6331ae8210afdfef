package common

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}

// PutMat4 writes a column-major 4x4 matrix as 16 little-endian float32 values.
//
// Parameters:
//   - buf: destination slice (must be at least 64 bytes)
//   - m: matrix to write
//
// Returns:
//   - int: number of bytes written (always 64)
func PutMat4(buf []byte, m mgl32.Mat4) int {
	for i, v := range m {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return 64
}

// PutVec4 writes a 4-component vector as little-endian float32 values and returns 16.
func PutVec4(buf []byte, v mgl32.Vec4) int {
	for i, c := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(c))
	}
	return 16
}

// PutUint32 writes a little-endian uint32 and returns 4.
func PutUint32(buf []byte, v uint32) int {
	binary.LittleEndian.PutUint32(buf, v)
	return 4
}
