//go:build !gocv

package main

import "github.com/ironsheep/ocrpipe/internal/imaging"

const processorName = "native"

func newProcessor() imaging.Processor {
	return imaging.NewNative()
}
