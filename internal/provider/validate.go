package provider

import (
	"github.com/go-playground/validator/v10"

	"github.com/tauritavern/companion-core/internal/domainerr"
)

var validate = validator.New()

// ValidateRequest enforces the struct-tag constraints on GenerationRequest,
// surfacing failures as ValidationError per §7 ("Payload translation errors
// surface as ValidationError when an upstream requires a field the request
// omitted"). BuildUpstreamRequest does not call it; a request is validated
// only where a caller invokes it.
func ValidateRequest(req *GenerationRequest) error {
	if err := validate.Struct(req); err != nil {
		return domainerr.Wrap(domainerr.ValidationError, "invalid generation request", err)
	}
	return nil
}
