// Package server provides the server side of the socket engine.
//
// Key Components:
//
//   - ObjectServer: Accepts endpoints that exchange typed values with the structured
//     codec. Incoming requests are handled by the common.DataProcessor set with
//     SetDataProcessor; a result is sent back as Response, otherwise an empty
//     Acknowledge is sent.
//
//   - RawServer: Accepts endpoints that exchange plain bytes, handled by a
//     common.ByteProcessor.
//
// Both embed *base.Listener and keep a registry of the live endpoints. If
// ServerConfig.DiscoveryName is set, Start also attaches a multicast discovery
// responder that answers "discover" with the name and address of the server.
//
// Usage Example:
//
//	eng := engine.New(common.EngineConfig{})
//	defer eng.Shutdown()
//
//	s := server.NewObjectServer(
//	  eng,
//	  tcp.NewTCPServerConnector(),
//	  serializer.NewJSONSerializer(),
//	  nil,
//	  common.ServerConfig{Endpoint: "0.0.0.0:8080", Connection: common.DefaultEndpointConfig()},
//	)
//	s.SetDataProcessor(func(payload any) (any, bool) {
//	  return payload, true
//	})
//
//	if err := s.Start(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//	server.WaitForSignal(s.Done())
package server
