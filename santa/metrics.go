package santa

import "github.com/ethereum/go-ethereum/metrics"

var (
	initFailMeter = metrics.NewRegisteredMeter("santa/init/fail", nil)

	syncTimer        = metrics.NewRegisteredTimer("santa/sync/time", nil)
	syncRecordsGauge = metrics.NewRegisteredGauge("santa/sync/records", nil)
	syncSkipMeter    = metrics.NewRegisteredMeter("santa/sync/skipped", nil)
	syncFatalMeter   = metrics.NewRegisteredMeter("santa/sync/fatal", nil)

	submitTimer       = metrics.NewRegisteredTimer("santa/submit/time", nil)
	submitOkMeter     = metrics.NewRegisteredMeter("santa/submit/ok", nil)
	submitRejectMeter = metrics.NewRegisteredMeter("santa/submit/rejected", nil)
	submitFailMeter   = metrics.NewRegisteredMeter("santa/submit/fail", nil)

	revealTimer       = metrics.NewRegisteredTimer("santa/reveal/time", nil)
	revealOkMeter     = metrics.NewRegisteredMeter("santa/reveal/ok", nil)
	revealCachedMeter = metrics.NewRegisteredMeter("santa/reveal/cached", nil)
	revealRaceMeter   = metrics.NewRegisteredMeter("santa/reveal/race", nil)
	revealFailMeter   = metrics.NewRegisteredMeter("santa/reveal/fail", nil)
)
