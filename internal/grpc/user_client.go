package grpc

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

// GetUsersMethod takes {"ids": [...]} and answers {"users": [{...profile}]}, both as
// google.protobuf.Struct.
const GetUsersMethod = "/userdirectory.v1.UserDirectory/GetUsers"

// Dial opens the user directory connection with tracing and call metrics attached.
func Dial(addr string) (*grpc.ClientConn, error) {
	return grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithChainUnaryInterceptor(observability.GRPCClientMetricsUnaryInterceptor()),
	)
}

// UserClient wraps the user directory gRPC service.
type UserClient struct {
	conn grpc.ClientConnInterface
}

// NewUserClient constructs the wrapper.
func NewUserClient(conn grpc.ClientConnInterface) *UserClient {
	return &UserClient{conn: conn}
}

// GetUsers fetches public profiles in one call. Ids the directory does not know are
// missing from the result.
func (u *UserClient) GetUsers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.PublicProfile, error) {
	profiles := make(map[uuid.UUID]models.PublicProfile, len(ids))
	if len(ids) == 0 {
		return profiles, nil
	}

	seen := make(map[uuid.UUID]struct{}, len(ids))
	values := make([]any, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		values = append(values, id.String())
	}

	req, err := structpb.NewStruct(map[string]any{"ids": values})
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp := &structpb.Struct{}
	if err := u.conn.Invoke(ctx, GetUsersMethod, req, resp); err != nil {
		return nil, err
	}

	for _, value := range resp.GetFields()["users"].GetListValue().GetValues() {
		fields := value.GetStructValue().GetFields()
		id, err := uuid.Parse(fields["id"].GetStringValue())
		if err != nil {
			continue
		}
		if _, asked := seen[id]; !asked {
			continue
		}
		profiles[id] = models.PublicProfile{
			ID:             id,
			FirstName:      fields["first_name"].GetStringValue(),
			LastName:       fields["last_name"].GetStringValue(),
			Headline:       fields["headline"].GetStringValue(),
			ProfilePicture: fields["profile_picture"].GetStringValue(),
			Location:       fields["location"].GetStringValue(),
		}
	}
	return profiles, nil
}
