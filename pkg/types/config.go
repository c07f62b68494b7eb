package types

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// Supported backend names.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// DefaultFamilyID is used when no family is configured.
const DefaultFamilyID = "default"

// Config selects a storage backend and carries the per-family settings the
// reconciler needs. It is passed explicitly to constructors.
type Config struct {
	Backend           string `json:"backend" yaml:"backend" validate:"required,oneof=sqlite badger"`
	DataDir           string `json:"data_dir" yaml:"data_dir"`
	FamilyID          string `json:"family_id" yaml:"family_id" validate:"required"`
	PreferredBranch   string `json:"preferred_branch" yaml:"preferred_branch"`
	RejectRegressions bool   `json:"reject_regressions" yaml:"reject_regressions"`
}

var validate = validator.New()

// Validate checks that the Config is well-formed. It returns ErrBackendEmpty,
// ErrBackendUnknown, or ErrFamilyEmpty.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	for _, fe := range verrs {
		switch fe.Field() {
		case "Backend":
			if fe.Tag() == "required" {
				return ErrBackendEmpty
			}
			return ErrBackendUnknown
		case "FamilyID":
			return ErrFamilyEmpty
		}
	}
	return err
}
