// Package backend provides the execution backends for the per-pixel stages of the
// balloon detection pipeline.
//
// A Backend exposes the small set of image operations the pipeline needs (color
// conversion, plane split and the element-wise absdiff/divide/multiply/threshold
// arithmetic) over opaque Mat buffers. The pipeline is written once against this
// interface and selects a backend at construction.
//
// # Variants
//
//   - "host": operates directly on in-memory buffers. Upload wraps the frame without
//     copying and Download returns the buffer itself.
//   - "pool": an offload device backed by separate memory. Upload and Download copy
//     explicitly, and every kernel runs across row bands on all CPUs.
//   - "cuda": an NVIDIA GPU through OpenCV's CUDA module. Only available in builds
//     tagged "gocv cuda"; other builds report ErrUnavailable from Open.
//
// # Transfers
//
// Buffers produced by an accelerated backend live in device memory and must be
// downloaded before host-only code (contour extraction, display) reads them.
// Upload and Download block until the transfer completes.
//
// # Arithmetic
//
// All operations follow 8-bit image arithmetic: results are rounded to the nearest
// integer (halves to even) and saturated to 0-255. Every backend must produce the
// same values within one unit; the HSV conversion formula is the only operation
// where backends are allowed to round differently.
//
// # Thread Safety
//
// Backends are used by one pipeline goroutine. Kernels may parallelize internally,
// but a single Backend must not be driven from several goroutines at once.
package backend
