package main

import (
	"context"
	"log"
	"time"

	"diary-backend/infrastructure/config"
	"diary-backend/infrastructure/di"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Global variables for Lambda lifecycle management
var (
	// chiLambda wraps the Chi router for AWS Lambda integration
	chiLambda *chiadapter.ChiLambdaV2

	// container holds the dependency injection container
	container *di.Container

	// coldStart tracks whether this is a cold start invocation
	coldStart = true

	// coldStartTime records when the cold start began
	coldStartTime time.Time
)

// init runs during cold start
func init() {
	coldStartTime = time.Now()
	log.Println("Lambda cold start initiated")

	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	// The API Gateway authorizer has already verified the caller and
	// forwards the user id in X-User-ID.
	cfg.IsLambda = true

	// The container lives for the whole execution environment, so its
	// cleanup never runs.
	container, _, err = di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	handler := container.Router.Setup()

	chiRouter, ok := handler.(*chi.Mux)
	if !ok {
		log.Fatal("Failed to cast handler to chi.Mux")
	}
	chiLambda = chiadapter.NewV2(chiRouter)

	log.Printf("Lambda cold start completed in %v", time.Since(coldStartTime))
}

// Handler is the Lambda function handler
func Handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	container.Logger.Debug("Lambda received request",
		zap.String("path", req.RequestContext.HTTP.Path),
		zap.String("method", req.RequestContext.HTTP.Method),
		zap.String("request_id", req.RequestContext.RequestID),
	)

	if req.Headers == nil {
		req.Headers = make(map[string]string)
	}
	// Only the authorizer may set the user id
	delete(req.Headers, "x-user-id")
	delete(req.Headers, "X-User-ID")
	if userID, ok := authorizerUserID(req); ok {
		req.Headers["X-User-ID"] = userID
	}

	resp, err := chiLambda.ProxyWithContextV2(ctx, req)

	if resp.Headers == nil {
		resp.Headers = make(map[string]string)
	}
	if coldStart {
		resp.Headers["X-Cold-Start"] = "true"
		resp.Headers["X-Cold-Start-Duration"] = time.Since(coldStartTime).String()
		coldStart = false
	} else {
		resp.Headers["X-Cold-Start"] = "false"
	}
	if req.RequestContext.RequestID != "" {
		resp.Headers["X-Request-ID"] = req.RequestContext.RequestID
	}

	if resp.StatusCode >= 500 {
		container.Logger.Error("Lambda error response",
			zap.String("path", req.RequestContext.HTTP.Path),
			zap.Int("status_code", resp.StatusCode),
			zap.String("body", resp.Body),
		)
	}

	return resp, err
}

// authorizerUserID reads the user id a Lambda or JWT authorizer attached
// to the request context
func authorizerUserID(req events.APIGatewayV2HTTPRequest) (string, bool) {
	authorizer := req.RequestContext.Authorizer
	if authorizer == nil {
		return "", false
	}
	if v, ok := authorizer.Lambda["user_id"]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s, true
		}
	}
	if authorizer.JWT != nil {
		if s := authorizer.JWT.Claims["user_id"]; s != "" {
			return s, true
		}
		if s := authorizer.JWT.Claims["sub"]; s != "" {
			return s, true
		}
	}
	return "", false
}

// main is the entry point for the Lambda function
func main() {
	lambda.Start(Handler)
}
