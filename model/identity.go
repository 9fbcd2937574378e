package model

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// TraitValueType describes which of the trait value fields carries the value.
type TraitValueType string

const (
	TraitValueTypeString  TraitValueType = "string"
	TraitValueTypeInteger TraitValueType = "integer"
	TraitValueTypeBoolean TraitValueType = "boolean"
)

// Trait is a single key/value pair attached to an identity. Exactly one of
// the value fields is meaningful, selected by ValueType.
type Trait struct {
	Key          string
	ValueType    TraitValueType
	StringValue  string
	IntegerValue int64
	BooleanValue bool
}

// FlagOverride is a per-identity override of a feature flag's state.
type FlagOverride struct {
	FeatureKey string
	Enabled    bool
	Value      string
}

// Identity is a single end-user's trait and flag-override state within a
// project. The identifier is unique within its project and acts as the
// natural key in the secondary store.
type Identity struct {
	ID            string
	ProjectID     string
	Identifier    string
	Traits        []Trait
	FlagOverrides []FlagOverride
	CreateAt      int64
}

// Validate checks that the identity can be represented in the secondary
// store. A failing identity is a data error, not a backend error.
func (i *Identity) Validate() error {
	if i.Identifier == "" {
		return errors.New("identity has no identifier")
	}
	for _, trait := range i.Traits {
		if trait.Key == "" {
			return errors.Errorf("identity %s has a trait with no key", i.Identifier)
		}
		switch trait.ValueType {
		case TraitValueTypeString, TraitValueTypeInteger, TraitValueTypeBoolean:
		default:
			return errors.Errorf("identity %s trait %s has unknown value type %q", i.Identifier, trait.Key, trait.ValueType)
		}
	}

	return nil
}

// CreateIdentityRequest specifies the fields needed to store a new identity.
type CreateIdentityRequest struct {
	Identifier    string
	Traits        []Trait
	FlagOverrides []FlagOverride
}

// NewCreateIdentityRequestFromReader will create a CreateIdentityRequest from
// an io.Reader with JSON data.
func NewCreateIdentityRequestFromReader(reader io.Reader) (*CreateIdentityRequest, error) {
	var request CreateIdentityRequest
	err := json.NewDecoder(reader).Decode(&request)
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "failed to decode create identity request")
	}
	if request.Identifier == "" {
		return nil, errors.New("identity identifier is required")
	}

	return &request, nil
}

// NewIdentityFromReader will create an Identity from an io.Reader with JSON data.
func NewIdentityFromReader(reader io.Reader) (*Identity, error) {
	var identity Identity
	err := json.NewDecoder(reader).Decode(&identity)
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "failed to decode identity")
	}

	return &identity, nil
}
