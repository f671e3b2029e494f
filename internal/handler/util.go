package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/sinergia/backend/internal/adapter"
)

// GetUserID extracts the user ID from the Authorization header or session cookie.
func GetUserID(req events.APIGatewayProxyRequest, jwtSecret string) (string, error) {
	// 1. Check Authorization Header (Bearer <token>)
	tokenString := ""
	authHeader := header(req, "Authorization")
	if authHeader != "" && strings.HasPrefix(authHeader, "Bearer ") {
		tokenString = strings.TrimPrefix(authHeader, "Bearer ")
	}

	// 2. Check Cookie
	if tokenString == "" {
		// Cookie format: session_token=xxx; ...
		if cookies := header(req, "Cookie"); cookies != "" {
			for _, part := range strings.Split(cookies, ";") {
				part = strings.TrimSpace(part)
				if strings.HasPrefix(part, "session_token=") {
					tokenString = strings.TrimPrefix(part, "session_token=")
					break
				}
			}
		}
	}

	if tokenString == "" {
		return "", fmt.Errorf("no authorization token found")
	}

	if jwtSecret == "" {
		return "", fmt.Errorf("token verification is not configured")
	}

	// Verify JWT
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(jwtSecret), nil
	})

	if err != nil {
		return "", fmt.Errorf("invalid token: %v", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		if sub, ok := claims["sub"].(string); ok && sub != "" {
			return sub, nil
		}
	}

	return "", fmt.Errorf("invalid token claims")
}

// header looks up a request header case-insensitively.
func header(req events.APIGatewayProxyRequest, name string) string {
	for k, v := range req.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// ErrorBody is the JSON body of every failed response.
type ErrorBody struct {
	Error string `json:"error"`
}

func jsonResponse(status int, v interface{}) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"encode response"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Body:       string(body),
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

// errorResponse logs err and maps it to a status by kind. Unclassified
// errors are 500.
func errorResponse(logger *zap.Logger, err error, fields ...zap.Field) events.APIGatewayProxyResponse {
	status := http.StatusInternalServerError
	var e *adapter.Error
	if errors.As(err, &e) {
		status = e.HTTPStatus()
		fields = append(fields, zap.String("op", e.Op), zap.String("kind", string(e.Kind)))
		if e.StatusCode != 0 {
			fields = append(fields, zap.Int("upstream_status", e.StatusCode))
		}
	}
	fields = append(fields, zap.Int("status", status), zap.Error(err))

	if status >= http.StatusInternalServerError {
		logger.Error("request failed", fields...)
	} else {
		logger.Warn("request rejected", fields...)
	}
	return jsonResponse(status, ErrorBody{Error: err.Error()})
}

func badRequest(msg string) events.APIGatewayProxyResponse {
	return jsonResponse(http.StatusBadRequest, ErrorBody{Error: msg})
}

// decodeBody unmarshals a JSON body. An empty body leaves v untouched.
func decodeBody(req events.APIGatewayProxyRequest, v interface{}) error {
	if strings.TrimSpace(req.Body) == "" {
		return nil
	}
	return json.Unmarshal([]byte(req.Body), v)
}
