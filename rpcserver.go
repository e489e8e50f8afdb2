package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"

	goerrors "github.com/go-errors/errors"
	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"time"

	"github.com/defuse-protocol/intents-settle/accounts"
	"github.com/defuse-protocol/intents-settle/condvar"
	"github.com/defuse-protocol/intents-settle/engine"
	"github.com/defuse-protocol/intents-settle/log"
	"github.com/defuse-protocol/intents-settle/macaroons"
	"github.com/defuse-protocol/intents-settle/tokenid"
)

// jsonCodec replaces protobuf wire encoding with plain JSON. The real
// lnrpc front door this one is modeled on ships protoc-generated message
// types; without a generator in this tree every request/response below is
// a hand-written Go struct, so the codec has to marshal those directly
// instead of through a proto.Message.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
func (jsonCodec) Name() string { return "json" }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

const macaroonMetadataKey = "macaroon"

// methodOperation maps each RPC's fully-qualified method name to the
// Operation its macaroon must authorize. Methods absent from this map
// require no macaroon at all (the read-only query surface).
var methodOperation = map[string]macaroons.Operation{
	"/defusesettle.Settle/RotateSalt":         macaroons.OpPrivileged,
	"/defusesettle.Settle/ForceLockAccount":   macaroons.OpPrivileged,
	"/defusesettle.Settle/ForceUnlockAccount": macaroons.OpPrivileged,
	"/defusesettle.Settle/ForceWithdraw":      macaroons.OpPrivileged,
	"/defusesettle.Settle/MtTransfer":         macaroons.OpPrivileged,
	"/defusesettle.Settle/MtBatchTransfer":    macaroons.OpPrivileged,
}

// macaroonUnaryInterceptor checks the incoming macaroon, if the server was
// started with one configured, against the operation methodOperation
// requires for the method being called.
func macaroonUnaryInterceptor(svc *macaroons.Service) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		required, ok := methodOperation[info.FullMethod]
		if !ok || svc == nil {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok || len(md.Get(macaroonMetadataKey)) == 0 {
			return nil, status.Error(codes.Unauthenticated, "macaroon: missing credential")
		}

		raw, err := hex.DecodeString(md.Get(macaroonMetadataKey)[0])
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "macaroon: malformed credential")
		}

		if err := svc.Verify(ctx, raw, required); err != nil {
			return nil, status.Error(codes.PermissionDenied, err.Error())
		}

		return handler(ctx, req)
	}
}

// recoveryUnaryInterceptor turns a panicking handler into a captured stack
// trace and a plain Internal error, rather than taking the listener down.
func recoveryUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				wrapped := goerrors.Wrap(r, 2)
				log.Errorf("panic in %s: %v\n%s", info.FullMethod, r, wrapped.ErrorStack())
				err = status.Errorf(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

// rpcServer is the settlement engine's gRPC front door: every method is
// registered by hand into a grpc.ServiceDesc since no protoc-generated
// stubs exist in this tree (see DESIGN.md for why grpc-gateway's codegen
// path was dropped in favor of this JSON codec).
type rpcServer struct {
	eng      *engine.Engine
	db       *accounts.DB
	macSvc   *macaroons.Service
	grpcSrv  *grpc.Server
	listener net.Listener
}

func newRPCServer(eng *engine.Engine, db *accounts.DB, macSvc *macaroons.Service) *rpcServer {
	r := &rpcServer{eng: eng, db: db, macSvc: macSvc}

	r.grpcSrv = grpc.NewServer(
		grpc.ForceServerCodec(jsonCodec{}),
		grpc.UnaryInterceptor(grpc_middleware.ChainUnaryServer(
			recoveryUnaryInterceptor(),
			grpc_prometheus.UnaryServerInterceptor,
			macaroonUnaryInterceptor(macSvc),
		)),
	)
	grpc_prometheus.Register(r.grpcSrv)
	r.grpcSrv.RegisterService(&settleServiceDesc, r)

	return r
}

// Start begins listening on addr. It returns once the listener has been
// established; Serve runs in its own goroutine so Start doesn't block the
// caller the way lnd's rpcServer.Start doesn't block newServer's caller.
func (r *rpcServer) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("rpcserver: listen %s: %w", addr, err)
	}
	r.listener = lis

	go func() {
		log.Infof("rpc server listening on %s", lis.Addr())
		if err := r.grpcSrv.Serve(lis); err != nil {
			log.Warnf("rpc server stopped serving: %v", err)
		}
	}()
	return nil
}

// Stop gracefully drains in-flight calls before closing the listener.
func (r *rpcServer) Stop() {
	r.grpcSrv.GracefulStop()
}

// --- request/response shapes -------------------------------------------------

type executeIntentsRequest struct {
	Envelopes    [][]byte `json:"envelopes"`
	NowUnixNanos int64    `json:"now_unix_nanos"`
}

type executeIntentsResponse struct{}

type simulateIntentsResponse struct {
	Logs              []json.RawMessage `json:"logs"`
	InvariantViolated string            `json:"invariant_violated,omitempty"`
}

type isNonceUsedRequest struct {
	AccountID string `json:"account_id"`
	Nonce     string `json:"nonce"`
}

type isNonceUsedResponse struct {
	Used bool `json:"used"`
}

type currentSaltResponse struct {
	Epoch uint32 `json:"epoch"`
}

type accountIDRequest struct {
	AccountID string `json:"account_id"`
}

type forceWithdrawRequest struct {
	AccountID string `json:"account_id"`
	TokenID   string `json:"token_id"`
	Amount    string `json:"amount"`
	Receiver  string `json:"receiver_id"`
}

type condvarKeyRequest struct {
	EscrowContract string `json:"escrow_contract"`
	AuthContract   string `json:"auth_contract"`
	OnAuthSigner   string `json:"on_auth_signer"`
	Authorizee     string `json:"authorizee"`
	MsgHash        string `json:"msg_hash"`
}

func (r condvarKeyRequest) toKey() (condvar.Key, error) {
	raw, err := hex.DecodeString(r.MsgHash)
	if err != nil || len(raw) != 32 {
		return condvar.Key{}, fmt.Errorf("rpcserver: msg_hash must be 32 hex-encoded bytes")
	}
	var hash [32]byte
	copy(hash[:], raw)
	return condvar.Key{
		EscrowContract: r.EscrowContract,
		AuthContract:   r.AuthContract,
		OnAuthSigner:   r.OnAuthSigner,
		Authorizee:     r.Authorizee,
		MsgHash:        hash,
	}, nil
}

type waitAuthorizationRequest struct {
	condvarKeyRequest
	Caller        string `json:"caller"`
	TimeoutMillis int64  `json:"timeout_millis"`
}

type waitAuthorizationResponse struct {
	Authorized bool `json:"authorized"`
}

type notifyAuthorizationRequest struct {
	condvarKeyRequest
	CallerContract string `json:"caller_contract"`
	Signer         string `json:"signer"`
}

func parseNonce(s string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 32 {
		return out, fmt.Errorf("rpcserver: nonce must be 32 hex-encoded bytes")
	}
	copy(out[:], raw)
	return out, nil
}

// --- handlers ----------------------------------------------------------------

func (r *rpcServer) executeIntents(ctx context.Context, in *executeIntentsRequest) (*executeIntentsResponse, error) {
	if err := r.eng.ExecuteIntents(in.Envelopes, in.NowUnixNanos); err != nil {
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	}
	return &executeIntentsResponse{}, nil
}

func (r *rpcServer) simulateIntents(ctx context.Context, in *executeIntentsRequest) (*simulateIntentsResponse, error) {
	report := r.eng.SimulateIntents(in.Envelopes, in.NowUnixNanos)

	logs := make([]json.RawMessage, 0, len(report.Logs))
	for _, ev := range report.Logs {
		raw, err := json.Marshal(ev)
		if err != nil {
			return nil, status.Error(codes.Internal, err.Error())
		}
		logs = append(logs, raw)
	}

	resp := &simulateIntentsResponse{Logs: logs}
	if report.InvariantViolated != nil {
		resp.InvariantViolated = report.InvariantViolated.Error()
	}
	return resp, nil
}

func (r *rpcServer) isNonceUsed(ctx context.Context, in *isNonceUsedRequest) (*isNonceUsedResponse, error) {
	nonce, err := parseNonce(in.Nonce)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	used, err := r.eng.IsNonceUsed(in.AccountID, nonce)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &isNonceUsedResponse{Used: used}, nil
}

func (r *rpcServer) currentSalt(ctx context.Context, _ *struct{}) (*currentSaltResponse, error) {
	epoch, err := r.eng.CurrentSalt()
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &currentSaltResponse{Epoch: epoch}, nil
}

func (r *rpcServer) rotateSalt(ctx context.Context, _ *struct{}) (*struct{}, error) {
	if err := r.eng.RotateSalt(); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &struct{}{}, nil
}

func (r *rpcServer) forceLockAccount(ctx context.Context, in *accountIDRequest) (*struct{}, error) {
	if err := r.eng.ForceLockAccount(in.AccountID); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &struct{}{}, nil
}

func (r *rpcServer) forceUnlockAccount(ctx context.Context, in *accountIDRequest) (*struct{}, error) {
	if err := r.eng.ForceUnlockAccount(in.AccountID); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &struct{}{}, nil
}

func (r *rpcServer) forceWithdraw(ctx context.Context, in *forceWithdrawRequest) (*struct{}, error) {
	token, err := tokenid.Parse(in.TokenID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := r.eng.ForceWithdraw(in.AccountID, token, in.Amount, in.Receiver); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &struct{}{}, nil
}

// waitAuthorization blocks the call for up to in.TimeoutMillis waiting on a
// matching NotifyAuthorization, implementing the authorizee's half of the
// one-shot condvar protocol (§4.8).
func (r *rpcServer) waitAuthorization(ctx context.Context, in *waitAuthorizationRequest) (*waitAuthorizationResponse, error) {
	key, err := in.toKey()
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	ok, err := r.eng.WaitAuthorization(in.Caller, key, time.Duration(in.TimeoutMillis)*time.Millisecond)
	if err != nil {
		return nil, status.Error(codes.PermissionDenied, err.Error())
	}
	return &waitAuthorizationResponse{Authorized: ok}, nil
}

// notifyAuthorization is the auth_contract's acknowledgement, resolving a
// pending waitAuthorization call with true (or pre-arming the instance if
// no wait has arrived yet).
func (r *rpcServer) notifyAuthorization(ctx context.Context, in *notifyAuthorizationRequest) (*struct{}, error) {
	key, err := in.toKey()
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := r.eng.NotifyAuthorization(in.CallerContract, in.Signer, key); err != nil {
		return nil, status.Error(codes.PermissionDenied, err.Error())
	}
	return &struct{}{}, nil
}

// --- hand-rolled ServiceDesc --------------------------------------------------

func wrapHandler[Req any, Resp any](fn func(*rpcServer, context.Context, *Req) (*Resp, error)) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		r := srv.(*rpcServer)
		if interceptor == nil {
			return fn(r, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: r}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return fn(r, ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var settleServiceDesc = grpc.ServiceDesc{
	ServiceName: "defusesettle.Settle",
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ExecuteIntents", Handler: wrapHandler((*rpcServer).executeIntents)},
		{MethodName: "SimulateIntents", Handler: wrapHandler((*rpcServer).simulateIntents)},
		{MethodName: "IsNonceUsed", Handler: wrapHandler((*rpcServer).isNonceUsed)},
		{MethodName: "CurrentSalt", Handler: wrapHandler((*rpcServer).currentSalt)},
		{MethodName: "RotateSalt", Handler: wrapHandler((*rpcServer).rotateSalt)},
		{MethodName: "ForceLockAccount", Handler: wrapHandler((*rpcServer).forceLockAccount)},
		{MethodName: "ForceUnlockAccount", Handler: wrapHandler((*rpcServer).forceUnlockAccount)},
		{MethodName: "ForceWithdraw", Handler: wrapHandler((*rpcServer).forceWithdraw)},
		{MethodName: "WaitAuthorization", Handler: wrapHandler((*rpcServer).waitAuthorization)},
		{MethodName: "NotifyAuthorization", Handler: wrapHandler((*rpcServer).notifyAuthorization)},
		{MethodName: "MtBalanceOf", Handler: wrapHandler((*rpcServer).mtBalanceOf)},
		{MethodName: "MtBatchBalanceOf", Handler: wrapHandler((*rpcServer).mtBatchBalanceOf)},
		{MethodName: "MtTransfer", Handler: wrapHandler((*rpcServer).mtTransfer)},
		{MethodName: "MtBatchTransfer", Handler: wrapHandler((*rpcServer).mtBatchTransfer)},
	},
	Metadata: "defusesettle.proto",
}
