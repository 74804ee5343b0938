package types

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type Validater interface {
	Validate() map[string]string
}

type ChatParams struct {
	Question       string `json:"question" validate:"required,max=1000"`
	CollectionName string `json:"collection_name" validate:"omitempty,max=128"`
}

type DocumentParams struct {
	Title       string `form:"title" json:"title" validate:"max=255"`
	Description string `form:"description" json:"description" validate:"max=2000"`
	Category    string `form:"category" json:"category" validate:"max=128"`
}

type UpdateDocumentParams struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,max=255"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	Category    *string `json:"category,omitempty" validate:"omitempty,max=128"`
}

// Empty reports whether the update carries no field at all.
func (params *UpdateDocumentParams) Empty() bool {
	return params.Title == nil && params.Description == nil && params.Category == nil
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

func (params *ChatParams) Validate() map[string]string {
	errs := validateStruct(params)
	if strings.TrimSpace(params.Question) == "" {
		if errs == nil {
			errs = make(map[string]string)
		}
		errs["Question"] = "question cannot be empty"
	}
	return errs
}

func (params *DocumentParams) Validate() map[string]string {
	return validateStruct(params)
}

func (params *UpdateDocumentParams) Validate() map[string]string {
	return validateStruct(params)
}

func validateStruct(s any) map[string]string {
	if err := validate.Struct(s); err != nil {
		errs, ok := err.(validator.ValidationErrors)
		if !ok {
			return map[string]string{"request": err.Error()}
		}
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}

type ChatResponse struct {
	Answer       string   `json:"answer"`
	Status       Status   `json:"status"`
	Sources      []string `json:"sources"`
	ErrorMessage string   `json:"error_message,omitempty"`
}

// NewChatResponse moves an error answer into ErrorMessage.
func NewChatResponse(res AnswerResult) ChatResponse {
	sources := res.Sources
	if sources == nil {
		sources = []string{}
	}
	if res.Status == StatusError {
		return ChatResponse{
			Status:       StatusError,
			Sources:      []string{},
			ErrorMessage: res.Answer,
		}
	}
	return ChatResponse{
		Answer:  res.Answer,
		Status:  StatusSuccess,
		Sources: sources,
	}
}
