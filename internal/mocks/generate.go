// Package mocks provides gomock implementations of the port interfaces.
//
// The mocks are generated with go.uber.org/mock (mockgen) and provide a
// fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	gw := mocks.NewMockCredentialGateway(ctrl)
//	gw.EXPECT().Login(gomock.Any(), gomock.Any()).Return(res, nil)
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=ports_mock.go github.com/senpy/sen-dashboard/internal/ports CredentialGateway,SessionStore,DatasetSource
