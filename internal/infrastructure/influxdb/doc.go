// Package influxdb exports build metrics to InfluxDB 2.x.
//
// Client implements process.Observer. Each start writes a process_starts
// point; each finished build writes a process_runs point tagged with the
// project directory name and outcome (success, failure, signaled, killed,
// unknown) carrying duration, exit code, signal and output byte counts.
//
// Writes are non-blocking and batched by the client library; failures are
// reported through SetOnError.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // metrics off
//	}
//	sup := process.NewSupervisor(pcfg, process.WithObserver(client))
package influxdb
