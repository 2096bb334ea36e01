package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Address is a shipping/billing destination owned by a user.
type Address struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID     uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	FirstName  string    `gorm:"column:first_name;not null"`
	LastName   string    `gorm:"column:last_name;not null"`
	Phone      string    `gorm:"column:phone;not null"`
	Line1      string    `gorm:"column:line1;not null"`
	Line2      *string   `gorm:"column:line2"`
	City       string    `gorm:"column:city;not null"`
	State      *string   `gorm:"column:state"`
	PostalCode *string   `gorm:"column:postal_code"`
	Country    string    `gorm:"column:country;not null;default:'Togo'"`
	IsDefault  bool      `gorm:"column:is_default;not null;default:false"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Recipient returns the contact name for receipts.
func (a Address) Recipient() string {
	return strings.TrimSpace(fmt.Sprintf("%s %s", a.FirstName, a.LastName))
}
