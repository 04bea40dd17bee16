package dispatcher

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Channel method names.
const (
	MethodShareImage         = "shareImage"
	MethodSaveImageToGallery = "saveImageToGallery"
)

var (
	// ErrNotImplemented is returned by Validate for unknown method names.
	ErrNotImplemented = errors.New("dispatcher: method not implemented")
	// ErrInvalidArguments is returned by Validate for malformed argument bags.
	ErrInvalidArguments = errors.New("dispatcher: invalid arguments")
)

// CallRequest is a validated call. The concrete types are ShareImageRequest
// and SaveImageRequest.
type CallRequest interface {
	Method() string
}

// ShareImageRequest asks for an image to be presented on the share surface.
type ShareImageRequest struct {
	ImagePath string
	Subject   string
}

// Method implements CallRequest.
func (ShareImageRequest) Method() string { return MethodShareImage }

// SaveImageRequest asks for an image to be written to the photo library.
type SaveImageRequest struct {
	ImagePath string
}

// Method implements CallRequest.
func (SaveImageRequest) Method() string { return MethodSaveImageToGallery }

// Validate projects a raw method name and argument bag into a CallRequest.
// Empty strings are accepted; only presence and type are checked.
func Validate(method string, args json.RawMessage) (CallRequest, error) {
	switch method {
	case MethodShareImage:
		bag, err := decodeBag(args)
		if err != nil {
			return nil, err
		}
		path, err := stringField(bag, "imagePath")
		if err != nil {
			return nil, err
		}
		subject, err := stringField(bag, "subject")
		if err != nil {
			return nil, err
		}
		return ShareImageRequest{ImagePath: path, Subject: subject}, nil
	case MethodSaveImageToGallery:
		bag, err := decodeBag(args)
		if err != nil {
			return nil, err
		}
		path, err := stringField(bag, "imagePath")
		if err != nil {
			return nil, err
		}
		return SaveImageRequest{ImagePath: path}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotImplemented, method)
	}
}

func decodeBag(args json.RawMessage) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("%w: missing argument bag", ErrInvalidArguments)
	}
	var bag map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &bag); err != nil {
		return nil, fmt.Errorf("%w: argument bag is not an object", ErrInvalidArguments)
	}
	return bag, nil
}

func stringField(bag map[string]json.RawMessage, name string) (string, error) {
	raw, ok := bag[name]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidArguments, name)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: %s must be a string", ErrInvalidArguments, name)
	}
	return s, nil
}
