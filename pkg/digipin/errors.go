package digipin

import "errors"

var (
	ErrOutOfRange    = errors.New("digipin: coordinate outside bounding region")
	ErrInvalidLength = errors.New("digipin: invalid code length")
	ErrInvalidSymbol = errors.New("digipin: invalid code symbol")
	ErrInvalidLevel  = errors.New("digipin: invalid subdivision level")
)
