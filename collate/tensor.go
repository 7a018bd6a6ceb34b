package collate

import (
	"fmt"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// IntTensor is a rectangular int32 tensor stored as a flat row-major
// buffer with explicit dimensions. Keeping batches in contiguous buffers
// makes the gomlx conversion a single call and keeps this package usable
// with any other tensor library.
type IntTensor struct {
	Data []int32
	Dims []int
}

// NewIntTensor allocates a zero-filled tensor with the given dimensions.
func NewIntTensor(dims ...int) *IntTensor {
	return &IntTensor{Data: make([]int32, volume(dims)), Dims: dims}
}

// Fill sets every element to v.
func (t *IntTensor) Fill(v int32) {
	for i := range t.Data {
		t.Data[i] = v
	}
}

// At returns the element at the given coordinates.
func (t *IntTensor) At(coords ...int) int32 { return t.Data[offset(t.Dims, coords)] }

// Set stores v at the given coordinates.
func (t *IntTensor) Set(v int32, coords ...int) { t.Data[offset(t.Dims, coords)] = v }

// Row returns row r of a rank-2 tensor as a slice into the buffer.
func (t *IntTensor) Row(r int) []int32 {
	if len(t.Dims) != 2 {
		panic(fmt.Sprintf("Row called on rank-%d tensor", len(t.Dims)))
	}
	cols := t.Dims[1]
	return t.Data[r*cols : (r+1)*cols]
}

// ToGomlx converts the tensor into a gomlx tensor of the same shape.
func (t *IntTensor) ToGomlx() *tensors.Tensor {
	return tensors.FromFlatDataAndDimensions(t.Data, t.Dims...)
}

// FloatTensor is the float32 counterpart of IntTensor, used for loss and
// validity masks and for structural features.
type FloatTensor struct {
	Data []float32
	Dims []int
}

// NewFloatTensor allocates a zero-filled tensor with the given dimensions.
func NewFloatTensor(dims ...int) *FloatTensor {
	return &FloatTensor{Data: make([]float32, volume(dims)), Dims: dims}
}

// At returns the element at the given coordinates.
func (t *FloatTensor) At(coords ...int) float32 { return t.Data[offset(t.Dims, coords)] }

// Set stores v at the given coordinates.
func (t *FloatTensor) Set(v float32, coords ...int) { t.Data[offset(t.Dims, coords)] = v }

// ToGomlx converts the tensor into a gomlx tensor of the same shape.
func (t *FloatTensor) ToGomlx() *tensors.Tensor {
	return tensors.FromFlatDataAndDimensions(t.Data, t.Dims...)
}

func volume(dims []int) int {
	v := 1
	for _, d := range dims {
		v *= d
	}
	return v
}

func offset(dims, coords []int) int {
	if len(coords) != len(dims) {
		panic(fmt.Sprintf("got %d coordinates for rank-%d tensor", len(coords), len(dims)))
	}
	off := 0
	for i, c := range coords {
		if c < 0 || c >= dims[i] {
			panic(fmt.Sprintf("coordinate %d out of range [0, %d) in dimension %d", c, dims[i], i))
		}
		off = off*dims[i] + c
	}
	return off
}
