package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProposalStatus 提案状态枚举
type ProposalStatus string

const (
	ProposalStatusDRAFT     ProposalStatus = "DRAFT"
	ProposalStatusSUBMITTED ProposalStatus = "SUBMITTED"
	ProposalStatusIN_REVIEW ProposalStatus = "IN_REVIEW"
	ProposalStatusWON       ProposalStatus = "WON"
	ProposalStatusLOST      ProposalStatus = "LOST"
)

// 漏斗阶段名称，派生胜率时按名称精确匹配
const (
	StageDraft     = "Draft"
	StageSubmitted = "Submitted"
	StageInReview  = "In Review"
	StageWon       = "Won"
	StageLost      = "Lost"
)

// PipelineStageOrder 漏斗阶段的固定顺序
var PipelineStageOrder = []ProposalStatus{
	ProposalStatusDRAFT,
	ProposalStatusSUBMITTED,
	ProposalStatusIN_REVIEW,
	ProposalStatusWON,
	ProposalStatusLOST,
}

// StageName 提案状态对应的漏斗阶段名称
func (s ProposalStatus) StageName() string {
	switch s {
	case ProposalStatusDRAFT:
		return StageDraft
	case ProposalStatusSUBMITTED:
		return StageSubmitted
	case ProposalStatusIN_REVIEW:
		return StageInReview
	case ProposalStatusWON:
		return StageWon
	case ProposalStatusLOST:
		return StageLost
	}
	return string(s)
}

// IsOpen 提案是否仍在进行中
func (s ProposalStatus) IsOpen() bool {
	return s == ProposalStatusDRAFT || s == ProposalStatusSUBMITTED || s == ProposalStatusIN_REVIEW
}

// Proposal 提案模型，json 与 bson 字段名保持一致以便字段投影
type Proposal struct {
	ID            primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Title         string             `json:"title" bson:"title"`
	CustomerID    string             `json:"customerId" bson:"customerId"`
	CustomerName  string             `json:"customerName" bson:"customerName"`
	Status        ProposalStatus     `json:"status" bson:"status"`
	Value         float64            `json:"value" bson:"value"`
	Currency      string             `json:"currency" bson:"currency"`
	Priority      string             `json:"priority" bson:"priority"`
	Margin        float64            `json:"margin,omitempty" bson:"margin,omitempty"`
	InternalNotes string             `json:"internalNotes,omitempty" bson:"internalNotes,omitempty"`
	OwnerID       string             `json:"ownerId" bson:"ownerId"`
	OwnerName     string             `json:"ownerName" bson:"ownerName"`
	DueDate       time.Time          `json:"dueDate" bson:"dueDate"`
	ClosedAt      time.Time          `json:"closedAt,omitempty" bson:"closedAt,omitempty"`
	CreatedAt     time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// Customer 客户模型
type Customer struct {
	ID        primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Name      string             `json:"name" bson:"name"`
	Industry  string             `json:"industry" bson:"industry"`
	Tier      string             `json:"tier" bson:"tier"`
	Email     string             `json:"email" bson:"email"`
	Phone     string             `json:"phone" bson:"phone"`
	Address   string             `json:"address" bson:"address"`
	Revenue   float64            `json:"revenue" bson:"revenue"`
	OwnerID   string             `json:"ownerId" bson:"ownerId"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt" bson:"updatedAt"`
}
