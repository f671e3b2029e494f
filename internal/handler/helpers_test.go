package handler_test

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/golang-jwt/jwt/v5"

	"github.com/sinergia/backend/internal/model"
)

const testUserID = "test-user-123"

func makeToken(userID string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(1 * time.Hour).Unix(),
	})
	signed, _ := token.SignedString([]byte(testJWTSecret))
	return signed
}

func makeRequest(method, path, body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: method,
		Path:       path,
		Body:       body,
		Headers: map[string]string{
			"Authorization": "Bearer " + makeToken(testUserID),
			"Content-Type":  "application/json",
		},
		PathParameters: map[string]string{},
	}
}

type fakeReader struct {
	values *model.SheetValues
	err    error
	calls  atomic.Int32
}

func (f *fakeReader) ReadRange(_ context.Context, _, _ string) (*model.SheetValues, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	v := *f.values
	return &v, nil
}

func decode(t *testing.T, body string, v interface{}) {
	t.Helper()
	if err := json.Unmarshal([]byte(body), v); err != nil {
		t.Fatalf("decode response %q: %v", body, err)
	}
}
