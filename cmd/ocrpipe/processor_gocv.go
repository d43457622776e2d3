//go:build gocv

package main

import (
	"github.com/ironsheep/ocrpipe/internal/imaging"
	"github.com/ironsheep/ocrpipe/internal/imaging/cvproc"
)

const processorName = "opencv"

func newProcessor() imaging.Processor {
	return cvproc.New()
}
