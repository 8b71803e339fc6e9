package consent

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/consentcore/consentcore/internal/platform/terminology"
	"github.com/consentcore/consentcore/pkg/fieldpath"
)

// InputErrorCode classifies request-side malformation. These surface as a
// structured failure from Validate, not as a denied decision.
type InputErrorCode string

const (
	InputInvalidTimestamp  InputErrorCode = "invalid_timestamp"
	InputEmptyDataTypes    InputErrorCode = "empty_data_types"
	InputInvalidTimeRange  InputErrorCode = "invalid_time_range"
	InputUnknownEnum       InputErrorCode = "unknown_enum"
	InputInvalidIdentifier InputErrorCode = "invalid_identifier"
)

// InputError is a malformed-input failure with a closed-set code.
type InputError struct {
	Code   InputErrorCode
	Detail string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input (%s): %s", e.Code, e.Detail)
}

// AsInputError unwraps err into an *InputError if it is one.
func AsInputError(err error) (*InputError, bool) {
	var ie *InputError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}

// patientIDPattern is the documented patient identifier format: the "PAT"
// prefix followed by 1-16 digits.
var patientIDPattern = regexp.MustCompile(`^PAT[0-9]{1,16}$`)

// opaqueIDPattern covers consentId, requestId and requester ids: 1-128
// characters from the URL-safe charset.
var opaqueIDPattern = regexp.MustCompile(`^[A-Za-z0-9._~-]{1,128}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	must(v.RegisterValidation("patientid", func(fl validator.FieldLevel) bool {
		return patientIDPattern.MatchString(fl.Field().String())
	}))
	must(v.RegisterValidation("opaqueid", func(fl validator.FieldLevel) bool {
		return opaqueIDPattern.MatchString(fl.Field().String())
	}))
	must(v.RegisterValidation("fieldpath", func(fl validator.FieldLevel) bool {
		return fieldpath.Valid(fl.Field().String())
	}))
	must(v.RegisterValidation("purpose", func(fl validator.FieldLevel) bool {
		return terminology.ValidPurpose(terminology.Purpose(fl.Field().String()))
	}))
	must(v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return terminology.ValidRole(terminology.Role(fl.Field().String()))
	}))
	return v
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// ValidateRequest checks the syntactic and semantic invariants of a request.
// It returns an *InputError describing the first violation found.
func ValidateRequest(req *Request) error {
	if len(req.DataTypes) == 0 {
		return &InputError{Code: InputEmptyDataTypes, Detail: "dataTypes must be non-empty"}
	}
	if err := validate.Struct(req); err != nil {
		return classifyValidationError(err)
	}
	if req.TimeRange.Start.IsZero() || req.TimeRange.End.IsZero() {
		return &InputError{Code: InputInvalidTimeRange, Detail: "timeRange bounds are required"}
	}
	if req.TimeRange.Start.After(req.TimeRange.End) {
		return &InputError{
			Code:   InputInvalidTimeRange,
			Detail: fmt.Sprintf("timeRange.start %s is after timeRange.end %s", req.TimeRange.Start, req.TimeRange.End),
		}
	}
	if req.Relationship != "" && !validRelationship(req.Relationship) {
		return &InputError{Code: InputUnknownEnum, Detail: fmt.Sprintf("unknown relationship %q", req.Relationship)}
	}
	return nil
}

func validRelationship(r Relationship) bool {
	switch r {
	case RelationshipExplicit, RelationshipNetworkPartner,
		RelationshipActiveReferral, RelationshipUnknown:
		return true
	}
	return false
}

func classifyValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &InputError{Code: InputUnknownEnum, Detail: err.Error()}
	}
	fe := verrs[0]
	detail := fmt.Sprintf("field %s failed %s validation", fe.Field(), fe.Tag())
	switch fe.Tag() {
	case "patientid", "opaqueid":
		return &InputError{Code: InputInvalidIdentifier, Detail: detail}
	case "purpose", "role":
		return &InputError{Code: InputUnknownEnum, Detail: detail}
	case "min", "required":
		if fe.Field() == "DataTypes" {
			return &InputError{Code: InputEmptyDataTypes, Detail: detail}
		}
		return &InputError{Code: InputInvalidIdentifier, Detail: detail}
	default:
		return &InputError{Code: InputUnknownEnum, Detail: detail}
	}
}

// treeStats walks a provision tree counting nodes and tracking depth.
func treeStats(p *Provision) (nodes, depth int) {
	if p == nil {
		return 0, 0
	}
	nodes = 1
	depth = 1
	for i := range p.Nested {
		n, d := treeStats(&p.Nested[i])
		nodes += n
		if d+1 > depth {
			depth = d + 1
		}
	}
	return nodes, depth
}

// WithinBounds reports whether the consent tree respects the configured hard
// bounds on node count and depth.
func WithinBounds(c *Consent, maxNodes, maxDepth int) bool {
	nodes, depth := treeStats(c.TopProvision)
	return nodes <= maxNodes && depth <= maxDepth
}
