package validator

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/matthewnoahkim/sciolyteams-sub001/internal/models"
)

// BusinessValidator handles business rule validation
type BusinessValidator struct {
	validate *validator.Validate
}

// NewBusinessValidator creates a new business validator
func NewBusinessValidator() *BusinessValidator {
	validate := validator.New()

	bv := &BusinessValidator{validate: validate}
	bv.registerBusinessRules()

	return bv
}

// Validate validates business rules for any struct
func (bv *BusinessValidator) Validate(s interface{}) ValidationErrors {
	err := bv.validate.Struct(s)
	if err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// ValidateTestCreate validates test creation business rules
func (bv *BusinessValidator) ValidateTestCreate(req *TestCreateRequest) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)
	errors = append(errors, bv.validateTestBusinessRules(req)...)

	return errors
}

// ValidateStatusTransition validates test status transitions
func (bv *BusinessValidator) ValidateStatusTransition(currentStatus, newStatus models.TestStatus, questionCount int) ValidationErrors {
	var errors ValidationErrors

	allowedTransitions := map[models.TestStatus][]models.TestStatus{
		models.StatusDraft:     {models.StatusPublished, models.StatusArchived},
		models.StatusPublished: {models.StatusArchived},
		models.StatusArchived:  {},
	}

	allowed := false
	for _, allowedStatus := range allowedTransitions[currentStatus] {
		if newStatus == allowedStatus {
			allowed = true
			break
		}
	}

	if !allowed {
		errors = append(errors, ValidationError{
			Field:   "status",
			Message: fmt.Sprintf("cannot transition from %s to %s", currentStatus, newStatus),
			Value:   newStatus,
			Rule:    "status_transition",
		})
	}

	// Publishing requires at least one question
	if newStatus == models.StatusPublished && questionCount == 0 {
		errors = append(errors, ValidationError{
			Field:   "questions",
			Message: "test must have at least one question before publishing",
			Value:   questionCount,
			Rule:    "business_logic",
		})
	}

	return errors
}

// registerBusinessRules registers custom business rule validators
func (bv *BusinessValidator) registerBusinessRules() {
	// Duration validation (5-300 minutes)
	bv.validate.RegisterValidation("test_duration", func(fl validator.FieldLevel) bool {
		duration := fl.Field().Int()
		return duration >= 5 && duration <= 300
	})

	// Max attempts validation (1-10)
	bv.validate.RegisterValidation("max_attempts", func(fl validator.FieldLevel) bool {
		attempts := fl.Field().Int()
		return attempts >= 1 && attempts <= 10
	})

	// Title validation (1-200 characters)
	bv.validate.RegisterValidation("test_title", func(fl validator.FieldLevel) bool {
		title := strings.TrimSpace(fl.Field().String())
		return len(title) >= 1 && len(title) <= 200
	})

	// Date validation (must be in future)
	bv.validate.RegisterValidation("future_date", func(fl validator.FieldLevel) bool {
		field := fl.Field()

		if field.Kind() == reflect.Ptr && field.IsNil() {
			return true // Optional field
		}

		var at time.Time
		if field.Kind() == reflect.Ptr {
			at = field.Elem().Interface().(time.Time)
		} else {
			at = field.Interface().(time.Time)
		}

		return at.After(time.Now())
	})

	// question type validation
	bv.validate.RegisterValidation("question_type", func(fl validator.FieldLevel) bool {
		qType := fl.Field().String()
		validTypes := []models.QuestionType{models.SingleSelect, models.MultiSelect, models.Numeric, models.ShortText, models.LongText}
		for _, vt := range validTypes {
			if models.QuestionType(qType) == vt {
				return true
			}
		}
		return false
	})

	// score release mode validation
	bv.validate.RegisterValidation("release_mode", func(fl validator.FieldLevel) bool {
		mode := fl.Field().String()
		validModes := []models.ScoreReleaseMode{models.ReleaseNone, models.ReleaseScoreOnly, models.ReleaseScoreWithWrong, models.ReleaseFullTest}
		for _, vm := range validModes {
			if models.ScoreReleaseMode(mode) == vm {
				return true
			}
		}
		return false
	})
}

// validateTestBusinessRules validates business rules for test creation
func (bv *BusinessValidator) validateTestBusinessRules(req *TestCreateRequest) ValidationErrors {
	var errors ValidationErrors

	// Window ordering: EndAt after StartAt, AllowLateUntil not before EndAt
	if req.StartAt != nil && req.EndAt != nil && !req.EndAt.After(*req.StartAt) {
		errors = append(errors, ValidationError{
			Field:   "end_at",
			Message: "must be after start_at",
			Value:   req.EndAt,
			Rule:    "business_logic",
		})
	}

	if req.EndAt != nil && req.AllowLateUntil != nil && req.AllowLateUntil.Before(*req.EndAt) {
		errors = append(errors, ValidationError{
			Field:   "allow_late_until",
			Message: "cannot be before end_at",
			Value:   req.AllowLateUntil,
			Rule:    "business_logic",
		})
	}

	// A release time only makes sense for modes that disclose something
	if req.ReleaseScoresAt != nil && req.ScoreReleaseMode == models.ReleaseNone {
		errors = append(errors, ValidationError{
			Field:   "release_scores_at",
			Message: "cannot be set when score_release_mode is none",
			Value:   req.ReleaseScoresAt,
			Rule:    "business_logic",
		})
	}

	return errors
}
