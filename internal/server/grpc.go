package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/resume-parser/constants"
	"github.com/joseph-ayodele/resume-parser/internal/common"
	"github.com/joseph-ayodele/resume-parser/internal/entity"
	"github.com/joseph-ayodele/resume-parser/internal/pipeline"
)

const (
	ParserServiceName   = "resumeparser.v1.ParserService"
	parseDocumentMethod = "/" + ParserServiceName + "/ParseDocument"
)

// ParserServer is the server API for resumeparser.v1.ParserService. Messages are
// google.protobuf.Struct so no generated stubs are needed.
type ParserServer interface {
	ParseDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var ParserServiceDesc = grpc.ServiceDesc{
	ServiceName: ParserServiceName,
	HandlerType: (*ParserServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ParseDocument", Handler: parseDocumentHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "resumeparser/v1/parser.proto",
}

func parseDocumentHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ParserServer).ParseDocument(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: parseDocumentMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ParserServer).ParseDocument(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func RegisterParserServer(s grpc.ServiceRegistrar, srv ParserServer) {
	s.RegisterService(&ParserServiceDesc, srv)
}

// ParserClient calls ParserService over an existing connection.
type ParserClient struct {
	cc grpc.ClientConnInterface
}

func NewParserClient(cc grpc.ClientConnInterface) *ParserClient {
	return &ParserClient{cc: cc}
}

func (c *ParserClient) ParseDocument(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, parseDocumentMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ParserService adapts the pipeline to the gRPC API.
type ParserService struct {
	parser  DocumentParser
	timeout time.Duration
	logger  *slog.Logger
}

func NewParserService(parser DocumentParser, timeout time.Duration, logger *slog.Logger) *ParserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ParserService{parser: parser, timeout: timeout, logger: logger}
}

// ParseDocument reads document_ref, media_type and content_base64 and answers with the
// ParseResult as a Struct. The caller comes from the bearer token (see AuthInterceptor).
// Parse failures travel inside the result; only an undecodable request is a gRPC error.
func (s *ParserService) ParseDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	str := func(k string) string { return fields[k].GetStringValue() }

	content, err := base64.StdEncoding.DecodeString(str("content_base64"))
	if err != nil {
		s.logger.Warn("grpc.parse.bad_request", "error", err)
		return nil, common.InvalidArgumentErrorf("content_base64 is not valid base64: %v", err)
	}

	callerID := common.CallerIDFromContext(ctx)
	reqID := uuid.New().String()
	ctx, cancel := common.WithTimeout(common.WithRequestID(ctx, reqID), s.timeout)
	defer cancel()

	res := s.parser.ParseDocument(ctx, pipeline.Document{
		Bytes:     content,
		MediaType: str("media_type"),
		Ref:       str("document_ref"),
	}, callerID)

	out, err := ResultStruct(res)
	if err != nil {
		s.logger.Error("grpc.parse.encode_failed", "req_id", reqID, "error", err)
		return nil, common.InternalError("encode result")
	}
	return out, nil
}

// ResultStruct converts a ParseResult into its wire Struct.
func ResultStruct(res entity.ParseResult) (*structpb.Struct, error) {
	b, err := json.Marshal(res)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseRequest builds a ParserService request.
func ParseRequest(documentRef, mediaType string, content []byte) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"document_ref":   structpb.NewStringValue(documentRef),
		"media_type":     structpb.NewStringValue(mediaType),
		"content_base64": structpb.NewStringValue(base64.StdEncoding.EncodeToString(content)),
	}}
}

// NewHealthServer reports SERVING for the whole server and for ParserService.
func NewHealthServer() *health.Server {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ParserServiceName, healthpb.HealthCheckResponse_SERVING)
	return hs
}

// LoggingInterceptor logs one line per unary call.
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("grpc.request",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}

// AuthInterceptor authenticates ParserService calls with the bearer token used over
// HTTP, read from the "authorization" metadata. The token subject becomes the caller.
// Health checks stay open.
func AuthInterceptor(secret, expectedIssuer string) grpc.UnaryServerInterceptor {
	secretBytes := []byte(secret)
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !strings.HasPrefix(info.FullMethod, "/"+ParserServiceName+"/") {
			return handler(ctx, req)
		}
		var header string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get("authorization"); len(v) > 0 {
				header = v[0]
			}
		}
		callerID, err := verifyToken(bearerToken(header), secretBytes, expectedIssuer)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		return handler(common.WithCallerID(ctx, callerID), req)
	}
}

// GRPCConfig wires the gRPC transport.
type GRPCConfig struct {
	Parser         DocumentParser
	JWTSecret      string
	JWTIssuer      string
	MaxUploadBytes int64
	ParseTimeout   time.Duration
	Logger         *slog.Logger
}

// maxRecvMsgSize admits a base64 document one byte over the upload ceiling plus
// envelope, so oversized documents reach the gate and fail as PAYLOAD_TOO_LARGE.
func maxRecvMsgSize(maxUploadBytes int64) int {
	if maxUploadBytes <= 0 {
		maxUploadBytes = constants.MaxUploadBytesDefault
	}
	return base64.StdEncoding.EncodedLen(int(maxUploadBytes+1)) + 64<<10
}

// NewGRPCServer builds a server with ParserService, health, logging and bearer auth.
func NewGRPCServer(cfg GRPCConfig) (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(
		grpc.MaxRecvMsgSize(maxRecvMsgSize(cfg.MaxUploadBytes)),
		grpc.ChainUnaryInterceptor(
			LoggingInterceptor(cfg.Logger),
			AuthInterceptor(cfg.JWTSecret, cfg.JWTIssuer),
		),
	)
	RegisterParserServer(srv, NewParserService(cfg.Parser, cfg.ParseTimeout, cfg.Logger))
	hs := NewHealthServer()
	healthpb.RegisterHealthServer(srv, hs)
	return srv, hs
}
