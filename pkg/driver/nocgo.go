//go:build !cgo

package driver

// без cgo miniaudio недоступен
const hardwareName = "malgo"
