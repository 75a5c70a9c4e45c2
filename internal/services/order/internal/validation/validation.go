package validation

import (
	"fmt"

	"restaurant-orders/internal/models"
)

const (
	maxItemsPerRequest = 50
	maxQuantity        = 99
	maxNoteLength      = 255
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateCreateOrderRequest checks the shape of a create-or-extend request
func ValidateCreateOrderRequest(req *models.CreateOrderRequest) error {
	if req == nil {
		return ValidationError{
			Field:   "items",
			Message: "request body is required",
		}
	}
	return validateItems(req.Items)
}

// ValidateTableNumber checks a zone-prefixed table code such as A_01
func ValidateTableNumber(number string) error {
	if number == "" {
		return ValidationError{
			Field:   "tableNumber",
			Message: "table number is required",
		}
	}
	if !models.ValidTableNumber(number) {
		return ValidationError{
			Field:   "tableNumber",
			Message: "table number must look like A_01",
		}
	}
	return nil
}

// ValidateItem checks a single item addition
func ValidateItem(menuItemID int64, quantity int, note string) error {
	return validateItem(models.OrderItemRequest{MenuItemID: menuItemID, Quantity: quantity, Note: note}, -1)
}

func validateItems(items []models.OrderItemRequest) error {
	if len(items) == 0 {
		return ValidationError{
			Field:   "items",
			Message: "items cannot be empty",
		}
	}

	if len(items) > maxItemsPerRequest {
		return ValidationError{
			Field:   "items",
			Message: fmt.Sprintf("a maximum of %d items is allowed", maxItemsPerRequest),
		}
	}

	for i, item := range items {
		if err := validateItem(item, i); err != nil {
			return err
		}
	}
	return nil
}

func itemField(index int, name string) string {
	if index < 0 {
		return name
	}
	return fmt.Sprintf("items[%d].%s", index, name)
}

func validateItem(item models.OrderItemRequest, index int) error {
	if item.MenuItemID <= 0 {
		return ValidationError{
			Field:   itemField(index, "menuItemId"),
			Message: "menu item id is required",
		}
	}

	if item.Quantity <= 0 {
		return ValidationError{
			Field:   itemField(index, "quantity"),
			Message: "item quantity must be greater than 0",
		}
	}

	if item.Quantity > maxQuantity {
		return ValidationError{
			Field:   itemField(index, "quantity"),
			Message: fmt.Sprintf("item quantity must be less than or equal to %d", maxQuantity),
		}
	}

	if len(item.Note) > maxNoteLength {
		return ValidationError{
			Field:   itemField(index, "note"),
			Message: fmt.Sprintf("note must be at most %d characters", maxNoteLength),
		}
	}
	return nil
}
