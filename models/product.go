package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Product 产品模型
type Product struct {
	ID        primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Name      string             `json:"name" bson:"name"`
	SKU       string             `json:"sku" bson:"sku"`
	Category  string             `json:"category" bson:"category"`
	Price     float64            `json:"price" bson:"price"`
	Cost      float64            `json:"cost" bson:"cost"`
	Currency  string             `json:"currency" bson:"currency"`
	IsActive  bool               `json:"isActive" bson:"isActive"`
	OwnerID   string             `json:"ownerId,omitempty" bson:"ownerId,omitempty"`
	CreatedAt time.Time          `json:"createdAt,omitempty" bson:"createdAt,omitempty"`
	UpdatedAt time.Time          `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}
