package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/BerniceZTT/posalpro_end/config"
	"github.com/BerniceZTT/posalpro_end/utils"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("记录不存在")
	// ErrInvalidID ID格式无效
	ErrInvalidID = errors.New("无效的ID格式")
)

// entityCollections 实体类型到集合名的映射
var entityCollections = map[string]string{
	config.EntityProposal: ProposalsCollection,
	config.EntityCustomer: CustomersCollection,
	config.EntityProduct:  ProductsCollection,
	config.EntityUser:     UsersCollection,
}

// idField 对外的ID字段名，存储中对应 _id
const idField = "id"

// EntityQuery 按字段投影读取实体的查询参数
type EntityQuery struct {
	Fields           []string // 返回的字段，按顺序
	SelfAccessFields []string // 仅所有者可见的字段
	OwnerField       string
	ViewerID         string // 当前用户ID，未登录为空
	Limit            int64
	Skip             int64
}

// MongoEntityStore 按字段投影读取实体
type MongoEntityStore struct {
	db *mongo.Database
}

// NewMongoEntityStore 创建实体读取器
func NewMongoEntityStore(database *mongo.Database) *MongoEntityStore {
	return &MongoEntityStore{db: database}
}

func (s *MongoEntityStore) collection(entityType string) (*mongo.Collection, error) {
	name, ok := entityCollections[entityType]
	if !ok {
		return nil, fmt.Errorf("实体 %q 没有对应的集合", entityType)
	}
	return s.db.Collection(name), nil
}

// Find 查询实体列表，只返回 q.Fields 中的字段
func (s *MongoEntityStore) Find(ctx context.Context, entityType string, q EntityQuery) ([]map[string]interface{}, error) {
	coll, err := s.collection(entityType)
	if err != nil {
		return nil, err
	}

	opts := options.Find().
		SetProjection(ToMongoProjection(q.Fields, q.SelfAccessFields, q.OwnerField)).
		SetSort(bson.D{{Key: "_id", Value: -1}})
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}
	if q.Skip > 0 {
		opts.SetSkip(q.Skip)
	}

	docs, err := ExecuteDbOperation(ctx, dbRetries, func() ([]bson.M, error) {
		cursor, err := coll.Find(ctx, bson.M{}, opts)
		if err != nil {
			return nil, err
		}
		var out []bson.M
		if err := cursor.All(ctx, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("查询%s失败: %w", entityType, err)
	}

	out := make([]map[string]interface{}, 0, len(docs))
	for _, doc := range docs {
		out = append(out, ShapeDocument(doc, q))
	}
	return out, nil
}

// FindByID 按ID查询单个实体
func (s *MongoEntityStore) FindByID(ctx context.Context, entityType, id string, q EntityQuery) (map[string]interface{}, error) {
	coll, err := s.collection(entityType)
	if err != nil {
		return nil, err
	}
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}

	opts := options.FindOne().SetProjection(ToMongoProjection(q.Fields, q.SelfAccessFields, q.OwnerField))
	var doc bson.M
	err = coll.FindOne(ctx, bson.M{"_id": objID}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询%s失败: %w", entityType, err)
	}
	return ShapeDocument(doc, q), nil
}

// ToMongoProjection 将字段列表转换为 MongoDB 包含型投影。
// 含仅所有者可见字段时额外取回所有者字段用于校验；字段为空时只取 _id。
func ToMongoProjection(fields, selfAccess []string, ownerField string) bson.M {
	proj := bson.M{}
	for _, f := range fields {
		proj[storageField(f)] = 1
	}
	if len(selfAccess) > 0 && ownerField != "" {
		proj[storageField(ownerField)] = 1
	}
	if _, ok := proj["_id"]; !ok {
		if len(proj) == 0 {
			proj["_id"] = 1
		} else {
			proj["_id"] = 0
		}
	}
	return proj
}

// ShapeDocument 将存储文档转换为响应：_id 改名为 id，只保留请求的字段，
// 非所有者访问时去掉仅所有者可见的字段。
func ShapeDocument(doc bson.M, q EntityQuery) map[string]interface{} {
	hidden := make(map[string]bool, len(q.SelfAccessFields))
	if len(q.SelfAccessFields) > 0 && !isOwner(doc, q.OwnerField, q.ViewerID) {
		for _, f := range q.SelfAccessFields {
			hidden[f] = true
		}
	}

	out := make(map[string]interface{}, len(q.Fields))
	for _, f := range q.Fields {
		if hidden[f] {
			continue
		}
		v, ok := doc[storageField(f)]
		if !ok {
			continue
		}
		if f == idField {
			v = idString(v)
		}
		out[f] = v
	}
	return out
}

func isOwner(doc bson.M, ownerField, viewerID string) bool {
	if ownerField == "" || viewerID == "" {
		return false
	}
	return idString(doc[storageField(ownerField)]) == viewerID
}

func storageField(field string) string {
	if field == idField {
		return "_id"
	}
	return field
}

func idString(v interface{}) string {
	if oid, ok := v.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return utils.ToString(v)
}
