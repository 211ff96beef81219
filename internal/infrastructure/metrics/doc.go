// Package metrics exposes decoder activity as Prometheus metrics.
//
// Metrics is a dcc.Sink: attach it to the decoder with dcc.MultiSink and
// serve its registry with Serve. Every collector is registered on a private
// registry, so several decoders in one process (or one test binary) do not
// clash.
//
//	m := metrics.New(cfg.Station.ID)
//	sink := dcc.MultiSink{annotator, m}
//	go m.Serve(ctx, cfg.Metrics.Listen, cfg.Metrics.Path)
package metrics
