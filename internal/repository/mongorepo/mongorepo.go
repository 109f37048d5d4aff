// Пакет mongorepo — реализация репозиториев поверх MongoDB.
// Формат документов совместим с существующими коллекциями users и files:
// пароль хранится в поле password, корневой parentId — число 0.
package mongorepo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/paolo-abarca/holbertonschool-files-manager/internal/database"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/domain/model"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/repository"
)

// userDoc — документ коллекции users.
type userDoc struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	Email    string             `bson:"email"`
	Password string             `bson:"password"`
}

// fileDoc — документ коллекции files.
// ParentID — число 0 для корня либо ObjectID папки.
type fileDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    primitive.ObjectID `bson:"userId"`
	Name      string             `bson:"name"`
	Type      string             `bson:"type"`
	IsPublic  bool               `bson:"isPublic"`
	ParentID  any                `bson:"parentId"`
	LocalPath string             `bson:"localPath,omitempty"`
}

// objectID разбирает hex-идентификатор. Некорректный формат
// неотличим от отсутствующей записи.
func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, repository.ErrNotFound
	}
	return oid, nil
}

// parentValue возвращает значение parentId для хранения.
func parentValue(p model.ParentRef) (any, error) {
	if p.IsRoot() {
		return 0, nil
	}
	return objectID(p.ID())
}

// parentRef восстанавливает ParentRef из декодированного значения.
func parentRef(v any) model.ParentRef {
	switch val := v.(type) {
	case primitive.ObjectID:
		return model.ParentRef(val.Hex())
	case string:
		return model.ParseParentRef(val)
	default:
		// nil и числовой 0 — корень
		return model.RootParent
	}
}

// toNode преобразует документ в доменный узел.
func (d *fileDoc) toNode() (*model.FileNode, error) {
	t, ok := model.ParseFileType(d.Type)
	if !ok {
		return nil, fmt.Errorf("узел %s: неизвестный тип %q", d.ID.Hex(), d.Type)
	}
	n := &model.FileNode{
		ID:       d.ID.Hex(),
		UserID:   d.UserID.Hex(),
		Name:     d.Name,
		Type:     t,
		IsPublic: d.IsPublic,
		ParentID: parentRef(d.ParentID),
	}
	if t.HasContent() && d.LocalPath != "" {
		n.Content = &model.Content{LocalPath: d.LocalPath}
	}
	return n, nil
}

// --- Пользователи ---

type userRepo struct {
	coll *mongo.Collection
}

// NewUserRepository создаёт репозиторий пользователей MongoDB.
func NewUserRepository(db *mongo.Database) repository.UserRepository {
	return &userRepo{coll: db.Collection(database.UsersCollection)}
}

func (r *userRepo) Create(ctx context.Context, u *model.User) error {
	res, err := r.coll.InsertOne(ctx, userDoc{Email: u.Email, Password: u.PasswordHash})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: пользователь %s уже зарегистрирован", repository.ErrConflict, u.Email)
		}
		return fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Errorf("неожиданный тип идентификатора %T", res.InsertedID)
	}
	u.ID = oid.Hex()
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *userRepo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"password": hash}})
	if err != nil {
		return fmt.Errorf("ошибка обновления хэша пароля: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *userRepo) Count(ctx context.Context) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта пользователей: %w", err)
	}
	return n, nil
}

func (r *userRepo) findOne(ctx context.Context, filter bson.M) (*model.User, error) {
	var doc userDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return &model.User{ID: doc.ID.Hex(), Email: doc.Email, PasswordHash: doc.Password}, nil
}

// --- Узлы иерархии ---

type fileRepo struct {
	coll *mongo.Collection
}

// NewFileRepository создаёт репозиторий узлов MongoDB.
// Порядок выдачи — по _id: ObjectID монотонно растут с временем вставки.
func NewFileRepository(db *mongo.Database) repository.FileRepository {
	return &fileRepo{coll: db.Collection(database.FilesCollection)}
}

func (r *fileRepo) Create(ctx context.Context, n *model.FileNode) error {
	ownerID, err := primitive.ObjectIDFromHex(n.UserID)
	if err != nil {
		return fmt.Errorf("некорректный идентификатор владельца %q: %w", n.UserID, err)
	}
	parent, err := parentValue(n.ParentID)
	if err != nil {
		return fmt.Errorf("родитель %s: %w", n.ParentID, err)
	}

	doc := fileDoc{
		UserID:    ownerID,
		Name:      n.Name,
		Type:      string(n.Type),
		IsPublic:  n.IsPublic,
		ParentID:  parent,
		LocalPath: n.LocalPath(),
	}
	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("ошибка создания узла: %w", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Errorf("неожиданный тип идентификатора %T", res.InsertedID)
	}
	n.ID = oid.Hex()
	return nil
}

func (r *fileRepo) GetByID(ctx context.Context, id string) (*model.FileNode, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var doc fileDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения узла: %w", err)
	}
	return doc.toNode()
}

func (r *fileRepo) List(ctx context.Context, filter repository.FileListFilter, limit, offset int) ([]*model.FileNode, error) {
	ownerID, err := primitive.ObjectIDFromHex(filter.OwnerID)
	if err != nil {
		return []*model.FileNode{}, nil
	}

	query := bson.M{"userId": ownerID}
	if filter.Parent != nil {
		parent, err := parentValue(*filter.Parent)
		if err != nil {
			return []*model.FileNode{}, nil
		}
		query["parentId"] = parent
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cur, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка узлов: %w", err)
	}
	defer cur.Close(ctx)

	nodes := make([]*model.FileNode, 0, limit)
	for cur.Next(ctx) {
		var doc fileDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("ошибка декодирования узла: %w", err)
		}
		n, err := doc.toNode()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения списка узлов: %w", err)
	}
	return nodes, nil
}

func (r *fileRepo) SetPublic(ctx context.Context, ownerID, id string, isPublic bool) (*model.FileNode, error) {
	fid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	oid, err := objectID(ownerID)
	if err != nil {
		return nil, err
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc fileDoc
	err = r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": fid, "userId": oid},
		bson.M{"$set": bson.M{"isPublic": isPublic}},
		opts,
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка обновления видимости: %w", err)
	}
	return doc.toNode()
}

func (r *fileRepo) ExistsByLocalPath(ctx context.Context, localPath string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"localPath": localPath}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("ошибка проверки пути содержимого: %w", err)
	}
	return n > 0, nil
}

func (r *fileRepo) Count(ctx context.Context) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта узлов: %w", err)
	}
	return n, nil
}
