package source

import (
	"image"

	"github.com/gen2brain/go-fitz"

	"github.com/ivlev/scrollframes/internal/synth"
)

// Source отдает исходные кадры для подготовки последовательности. Индексы с 0.
type Source interface {
	Count() int
	Frame(index int) (image.Image, error)
	Close() error
}

// FitzPDFSource растеризует страницы PDF, один кадр на страницу.
type FitzPDFSource struct {
	doc  *fitz.Document
	path string
	dpi  int
}

func NewFitzPDFSource(path string, dpi int) (*FitzPDFSource, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	return &FitzPDFSource{doc: doc, path: path, dpi: dpi}, nil
}

func (f *FitzPDFSource) Count() int {
	return f.doc.NumPage()
}

func (f *FitzPDFSource) Frame(index int) (image.Image, error) {
	// отдельный документ на вызов, чтобы воркеры не блокировали друг друга
	workerDoc, err := fitz.New(f.path)
	if err != nil {
		return nil, err
	}
	defer workerDoc.Close()
	return workerDoc.ImageDPI(index, float64(f.dpi))
}

func (f *FitzPDFSource) Close() error {
	return f.doc.Close()
}

// SynthSource рисует пронумерованные тестовые кадры.
type SynthSource struct {
	N             int
	Width, Height int
}

func (s SynthSource) Count() int { return s.N }

func (s SynthSource) Frame(index int) (image.Image, error) {
	return synth.Frame(index+1, s.N, s.Width, s.Height)
}

func (s SynthSource) Close() error { return nil }
