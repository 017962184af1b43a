package database

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"qrpass/entity"
	"qrpass/internal/config"
	"qrpass/lib/clock"
)

const (
	collectionUsers      = "users"
	collectionTokens     = "tokens"
	collectionScans      = "scans"
	collectionAttendance = "attendance"
)

type MongoDB struct {
	clientOptions *options.ClientOptions
	database      string
}

func NewMongoClient(conf *config.Config) *MongoDB {
	if !conf.Mongo.Enabled {
		return nil
	}
	connectionUri := fmt.Sprintf("mongodb://%s:%s", conf.Mongo.Host, conf.Mongo.Port)
	clientOptions := options.Client().ApplyURI(connectionUri)
	if conf.Mongo.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.Mongo.User,
			Password:   conf.Mongo.Password,
			AuthSource: conf.Mongo.Database,
		})
	}
	return &MongoDB{
		clientOptions: clientOptions,
		database:      conf.Mongo.Database,
	}
}

func (m *MongoDB) connect(ctx context.Context) (*mongo.Client, error) {
	connection, err := mongo.Connect(ctx, m.clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", entity.ErrStorageUnavailable)
	}
	return connection, nil
}

func (m *MongoDB) disconnect(ctx context.Context, connection *mongo.Client) {
	_ = connection.Disconnect(ctx)
}

// opError maps driver errors onto the storage sentinels the domain layer
// understands. Deadline and transport failures become ErrStorageUnavailable
// so they are never mistaken for a policy rejection.
func (m *MongoDB) opError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("%s: %w", op, entity.ErrNotFound)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s: %w", op, entity.ErrDuplicateScan)
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		mongo.IsTimeout(err),
		mongo.IsNetworkError(err),
		isServerError(err):
		return fmt.Errorf("%s: %w", op, entity.ErrStorageUnavailable)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// isServerError catches server-side command and write failures that are
// not a duplicate key: write conflicts outliving WithTransaction's
// retries, failovers mid-commit. Those are transient to the caller,
// retryable and never a policy outcome.
func isServerError(err error) bool {
	var srvErr mongo.ServerError
	return errors.As(err, &srvErr)
}

// EnsureIndexes creates the indexes the store relies on. The partial unique
// indexes are what turn a duplicate-scan race into entity.ErrDuplicateScan
// instead of two accepted records: the scans index guards the per_token
// policy, the attendance index guards per_scope_day across different
// tokens of the same scope.
func (m *MongoDB) EnsureIndexes(ctx context.Context) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)
	db := connection.Database(m.database)

	scans := db.Collection(collectionScans)
	_, err = scans.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "token_id", Value: 1}, {Key: "user_id", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.D{
				{Key: "result", Value: string(entity.ScanAccepted)},
				{Key: "single_use", Value: true},
			}),
	})
	if err != nil {
		return m.opError("create scans index", err)
	}

	attendance := db.Collection(collectionAttendance)
	_, err = attendance.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "scope_id", Value: 1}, {Key: "date", Value: 1}},
	})
	if err != nil {
		return m.opError("create attendance index", err)
	}
	_, err = attendance.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "scope_id", Value: 1}, {Key: "user_id", Value: 1}, {Key: "date", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.D{
				{Key: "single_per_day", Value: true},
			}),
	})
	if err != nil {
		return m.opError("create attendance unique index", err)
	}

	tokens := db.Collection(collectionTokens)
	_, err = tokens.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "scope_id", Value: 1}, {Key: "active", Value: 1}},
	})
	if err != nil {
		return m.opError("create tokens index", err)
	}

	users := db.Collection(collectionUsers)
	_, err = users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "token", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return m.opError("create users index", err)
	}
	return nil
}

func (m *MongoDB) GetIdentity(ctx context.Context, token string) (*entity.Identity, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(collectionUsers)
	filter := bson.D{{Key: "token", Value: token}}
	var identity entity.Identity
	err = collection.FindOne(ctx, filter).Decode(&identity)
	if err != nil {
		return nil, m.opError("get identity", err)
	}
	return &identity, nil
}

func (m *MongoDB) SaveToken(ctx context.Context, token *entity.Token) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(collectionTokens)
	_, err = collection.InsertOne(ctx, token)
	return m.opError("save token", err)
}

func (m *MongoDB) Token(ctx context.Context, id string) (*entity.Token, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(collectionTokens)
	filter := bson.D{{Key: "_id", Value: id}}
	var token entity.Token
	err = collection.FindOne(ctx, filter).Decode(&token)
	if err != nil {
		return nil, m.opError("get token", err)
	}
	return &token, nil
}

func (m *MongoDB) ActiveTokensForScope(ctx context.Context, scopeId string) ([]*entity.Token, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(collectionTokens)
	filter := bson.D{{Key: "scope_id", Value: scopeId}, {Key: "active", Value: true}}
	cursor, err := collection.Find(ctx, filter)
	if err != nil {
		return nil, m.opError("find active tokens", err)
	}
	defer cursor.Close(ctx)

	var tokens []*entity.Token
	if err = cursor.All(ctx, &tokens); err != nil {
		return nil, m.opError("decode active tokens", err)
	}
	return tokens, nil
}

// DeactivateToken flips active to false. Idempotent: deactivating an
// already-inactive or unknown token is a no-op success.
func (m *MongoDB) DeactivateToken(ctx context.Context, id string) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(collectionTokens)
	filter := bson.D{{Key: "_id", Value: id}}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "active", Value: false}}}}
	_, err = collection.UpdateOne(ctx, filter, update)
	return m.opError("deactivate token", err)
}

// commitUpdate is the conditional scan-count increment: it matches only an
// active token with remaining capacity and flips active in the same update
// when the increment exhausts the cap.
func commitUpdate() (bson.D, mongo.Pipeline) {
	filter := bson.D{
		{Key: "active", Value: true},
		{Key: "$or", Value: bson.A{
			bson.D{{Key: "max_scans", Value: 0}},
			bson.D{{Key: "$expr", Value: bson.D{{Key: "$lt", Value: bson.A{"$scan_count", "$max_scans"}}}}},
		}},
	}
	next := bson.D{{Key: "$add", Value: bson.A{"$scan_count", 1}}}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "scan_count", Value: next},
			{Key: "active", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$and", Value: bson.A{
					bson.D{{Key: "$gt", Value: bson.A{"$max_scans", 0}}},
					bson.D{{Key: "$gte", Value: bson.A{next, "$max_scans"}}},
				}}},
				false,
				"$active",
			}}}},
		}}},
	}
	return filter, update
}

// CommitScan is the redemption commit: one transaction incrementing the
// token's scan count (flipping active when the cap is reached), appending
// the accepted scan record and appending the attendance record. Either all
// three persist or none do.
//
// Returns entity.ErrTokenSpent when the conditional update matches nothing
// and entity.ErrDuplicateScan when either partial unique index fires (a
// repeat accepted scan of a per_token token, or a second per_scope_day
// attendance record for the same user, scope and date).
func (m *MongoDB) CommitScan(ctx context.Context, tokenId string, scan *entity.ScanRecord, record *entity.AttendanceRecord) (*entity.Token, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	session, err := connection.StartSession()
	if err != nil {
		return nil, m.opError("start session", err)
	}
	defer session.EndSession(ctx)

	db := connection.Database(m.database)
	filter, update := commitUpdate()
	filter = append(bson.D{{Key: "_id", Value: tokenId}}, filter...)

	result, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		var updated entity.Token
		err := db.Collection(collectionTokens).FindOneAndUpdate(sc, filter, update,
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, entity.ErrTokenSpent
		}
		if err != nil {
			return nil, err
		}
		if _, err = db.Collection(collectionScans).InsertOne(sc, scan); err != nil {
			return nil, err
		}
		if _, err = db.Collection(collectionAttendance).InsertOne(sc, record); err != nil {
			return nil, err
		}
		return &updated, nil
	})
	if err != nil {
		if errors.Is(err, entity.ErrTokenSpent) {
			return nil, entity.ErrTokenSpent
		}
		return nil, m.opError("commit scan", err)
	}
	return result.(*entity.Token), nil
}

// RecordScan appends an audit entry outside the commit path. Used for
// rejected attempts; failures here are the caller's to log, never to
// propagate as the redemption outcome.
func (m *MongoDB) RecordScan(ctx context.Context, scan *entity.ScanRecord) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(collectionScans)
	_, err = collection.InsertOne(ctx, scan)
	return m.opError("record scan", err)
}

func (m *MongoDB) HasAcceptedScan(ctx context.Context, tokenId, userId string) (bool, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return false, err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(collectionScans)
	filter := bson.D{
		{Key: "token_id", Value: tokenId},
		{Key: "user_id", Value: userId},
		{Key: "result", Value: string(entity.ScanAccepted)},
	}
	count, err := collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, m.opError("count accepted scans", err)
	}
	return count > 0, nil
}

func (m *MongoDB) AttendanceExists(ctx context.Context, userId, scopeId, date string) (bool, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return false, err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(collectionAttendance)
	filter := bson.D{
		{Key: "user_id", Value: userId},
		{Key: "scope_id", Value: scopeId},
		{Key: "date", Value: date},
	}
	count, err := collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, m.opError("count attendance", err)
	}
	return count > 0, nil
}

func (m *MongoDB) QueryAttendance(ctx context.Context, q *entity.AttendanceQuery) ([]*entity.AttendanceRecord, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	filter := bson.D{}
	if q.UserId != "" {
		filter = append(filter, bson.E{Key: "user_id", Value: q.UserId})
	}
	if q.ScopeId != "" {
		filter = append(filter, bson.E{Key: "scope_id", Value: q.ScopeId})
	}
	dates := bson.D{}
	if !q.From.IsZero() {
		dates = append(dates, bson.E{Key: "$gte", Value: clock.Day(q.From)})
	}
	if !q.To.IsZero() {
		dates = append(dates, bson.E{Key: "$lte", Value: clock.Day(q.To)})
	}
	if len(dates) > 0 {
		filter = append(filter, bson.E{Key: "date", Value: dates})
	}

	collection := connection.Database(m.database).Collection(collectionAttendance)
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, m.opError("find attendance", err)
	}
	defer cursor.Close(ctx)

	var records []*entity.AttendanceRecord
	if err = cursor.All(ctx, &records); err != nil {
		return nil, m.opError("decode attendance", err)
	}
	return records, nil
}
