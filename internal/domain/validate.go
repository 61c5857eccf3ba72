package domain

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// validatorInstance returns the shared validator with the custom "region" tag.
// Field errors are reported under their JSON names.
func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = validate.RegisterValidation("region", func(fl validator.FieldLevel) bool {
			return IsValidRegion(fl.Field().String())
		})
	})
	return validate
}

// Validate trims the name and validates the CreateBuildingRequest.
func (r *CreateBuildingRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Status == "" {
		r.Status = BuildingStatusOnline
	}
	return validatorInstance().Struct(r)
}

// Validate trims string fields and validates the UpdateBuildingRequest.
func (r *UpdateBuildingRequest) Validate() error {
	if r.Name != nil {
		trimmed := strings.TrimSpace(*r.Name)
		r.Name = &trimmed
	}
	return validatorInstance().Struct(r)
}

// Validate normalizes the UpdateUserScopeRequest, then validates it. Only the
// attribute the role keeps is checked.
func (r *UpdateUserScopeRequest) Validate() error {
	r.Normalize()
	return validatorInstance().Struct(r)
}

// Validate trims and normalizes the InviteUserRequest, then validates it.
func (r *InviteUserRequest) Validate() error {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.FullName = strings.TrimSpace(r.FullName)
	scope := r.Scope()
	r.Region, r.BuildingIDs = scope.Region, scope.BuildingIDs
	return validatorInstance().Struct(r)
}

// Validate trims the search query and applies the default result limit.
func (p *SearchParams) Validate() error {
	p.Query = strings.TrimSpace(p.Query)
	if p.MaxResults == 0 {
		p.MaxResults = DefaultSearchResults
	}
	return validatorInstance().Struct(p)
}

// Validate trims text fields and applies the medium priority and manual
// source defaults.
func (r *CreateServiceRequestRequest) Validate() error {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	if r.Priority == "" {
		r.Priority = PriorityMedium
	}
	if r.Source == "" {
		r.Source = SourceManual
	}
	return validatorInstance().Struct(r)
}

// Validate drops resolution notes unless the request is being resolved.
func (r *UpdateServiceRequestStatusRequest) Validate() error {
	if r.Status != StatusResolved {
		r.ResolutionNotes = nil
	} else if r.ResolutionNotes != nil {
		trimmed := strings.TrimSpace(*r.ResolutionNotes)
		r.ResolutionNotes = &trimmed
	}
	return validatorInstance().Struct(r)
}

// Validate trims the comment text.
func (r *AddCommentRequest) Validate() error {
	r.CommentText = strings.TrimSpace(r.CommentText)
	return validatorInstance().Struct(r)
}
