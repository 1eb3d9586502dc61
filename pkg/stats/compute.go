package stats

import (
	"sort"

	"github.com/starsystemlabs/nebula-telemetry/pkg/event"
	"github.com/starsystemlabs/nebula-telemetry/pkg/rolling"
)

// Neutral defaults reported when neither a window nor a baseline
// exists. A wallet rate defaults optimistic because showing 0% for a
// widget nobody has tried to connect through yet reads as an outage.
const (
	NeutralWalletRate = 100.0
	NeutralLoadRate   = 0.0
)

// Compute reduces a period of events into an aggregate. Each metric
// family is computed independently and merged, so families cannot
// observe each other's intermediate state.
func Compute(in Input) *Aggregate {
	byKind := partitionByKind(in.Events)

	a := &Aggregate{
		TotalEvents:   len(in.Events),
		UniqueWidgets: countUniqueWidgets(in.Events),
		Timestamp:     in.Now,
	}

	computeLoad(a, byKind, in)
	computeRender(a, byKind, in)
	computeWallet(a, byKind, in)
	computeInteractions(a, byKind)
	computeRPC(a, byKind)
	computeTransactions(a, byKind)
	computeEngagement(a, in.Events, byKind)
	computeSessions(a, in.Events)
	computePageLoad(a, in.Events)
	computeWebVitals(a, in.Events)

	a.DataQuality = DataQuality{
		HasRealLoadData:        len(byKind[event.KindLoad]) > 0,
		HasRealRenderData:      len(byKind[event.KindRender]) > 0,
		HasRealWalletData:      len(byKind[event.KindWalletConnect]) > 0,
		HasRealInteractionData: len(byKind[event.KindInteraction]) > 0,
		HasRealRPCData:         len(byKind[event.KindRPC]) > 0,
		TotalEvents:            len(in.Events),
		DataFreshness:          in.Now,
	}
	return a
}

func partitionByKind(events []event.Event) map[event.Kind][]event.Event {
	byKind := make(map[event.Kind][]event.Event)
	for _, e := range events {
		k := event.Classify(e)
		byKind[k] = append(byKind[k], e)
	}
	return byKind
}

func countUniqueWidgets(events []event.Event) int {
	seen := make(map[string]struct{})
	for _, e := range events {
		id := e.WidgetID
		if id == "" {
			id = e.SessionID
		}
		if id != "" {
			seen[id] = struct{}{}
		}
	}
	return len(seen)
}

func computeLoad(a *Aggregate, byKind map[event.Kind][]event.Event, in Input) {
	loads := byKind[event.KindLoad]
	loadErrors := byKind[event.KindLoadError]
	total := len(loads) + len(loadErrors)

	if total > 0 {
		a.TotalLoads = total
		if r := in.LoadWindow.Rates(); r != nil {
			a.LoadSuccessRate = r.SuccessRate
			a.RollingLoadWindowSize = r.TotalEvents
			a.IsRollingLoadRate = true
		} else {
			// Window unavailable, fall back to the period alone.
			successes := 0
			for _, e := range loads {
				if !e.Failed() {
					successes++
				}
			}
			a.LoadSuccessRate = float64(successes) / float64(total) * 100
		}
	} else {
		switch rate, src := fallbackRate(in.LoadWindow, in.History.LoadRate, NeutralLoadRate); src {
		case sourceWindow:
			a.LoadSuccessRate = rate
			a.RollingLoadWindowSize = in.LoadWindow.Len()
			a.IsRollingLoadRate = true
			a.IsMaintainedLoadRate = true
		case sourceBaseline:
			a.LoadSuccessRate = rate
			a.IsMaintainedLoadRate = true
		default:
			a.LoadSuccessRate = rate
		}
	}
	a.WidgetLoadSuccessRate = a.LoadSuccessRate
}

func computeRender(a *Aggregate, byKind map[event.Kind][]event.Event, in Input) {
	times := make([]float64, 0, len(byKind[event.KindRender]))
	for _, e := range byKind[event.KindRender] {
		t := e.RenderTime
		if t == 0 {
			t = e.Duration
		}
		if t > 0 {
			times = append(times, t)
		}
	}

	if len(times) > 0 {
		sort.Float64s(times)
		a.RenderTimeAvg = mean(times)
		a.RenderTimeP50 = percentile(times, 0.5)
		a.RenderTimeP95 = percentile(times, 0.95)
		a.RenderTimeMax = times[len(times)-1]
		a.RenderTimeMin = times[0]
		for _, t := range times {
			switch {
			case t < 200:
				a.RenderTimeDistribution.Fast++
			case t < 500:
				a.RenderTimeDistribution.Medium++
			default:
				a.RenderTimeDistribution.Slow++
			}
		}
		return
	}

	if b := in.History.Render; b != nil && b.P50 > 0 {
		a.RenderTimeAvg = b.Avg
		a.RenderTimeP50 = b.P50
		a.RenderTimeP95 = b.P95
		a.RenderTimeMax = b.Max
		a.RenderTimeMin = b.Min
		a.RenderTimeDistribution = b.Distribution
		a.IsMaintainedRenderTimes = true
	}
}

func computeWallet(a *Aggregate, byKind map[event.Kind][]event.Event, in Input) {
	walletEvents := byKind[event.KindWalletConnect]
	a.WalletTypeBreakdown = map[string]*WalletTypeStats{}
	a.WalletErrorCategories = map[string]int{}

	if len(walletEvents) == 0 {
		switch rate, src := fallbackRate(in.WalletWindow, in.History.WalletRate, NeutralWalletRate); src {
		case sourceWindow:
			r := in.WalletWindow.Rates()
			a.WalletSuccessRate = r.SuccessRate
			a.WalletUserRejectionRate = r.UserRejectionRate
			a.WalletTechnicalFailureRate = r.TechnicalFailureRate
			a.RollingWindowSize = r.TotalEvents
			a.IsRollingRate = true
			a.IsMaintainedRate = true
		case sourceBaseline:
			a.WalletSuccessRate = rate
			a.IsMaintainedRate = true
		default:
			a.WalletSuccessRate = rate
			a.IsMaintainedRate = true
		}
		a.WalletConnectSuccessRate = a.WalletSuccessRate
		return
	}

	if r := in.WalletWindow.Rates(); r != nil {
		a.WalletSuccessRate = r.SuccessRate
		a.WalletUserRejectionRate = r.UserRejectionRate
		a.WalletTechnicalFailureRate = r.TechnicalFailureRate
		a.RollingWindowSize = r.TotalEvents
		a.IsRollingRate = true
	} else {
		successes := 0
		for _, e := range walletEvents {
			if e.Succeeded() {
				successes++
			}
		}
		a.WalletSuccessRate = float64(successes) / float64(len(walletEvents)) * 100
		a.WalletTechnicalFailureRate = 100 - a.WalletSuccessRate
	}
	a.WalletConnectSuccessRate = a.WalletSuccessRate
	a.TotalWalletConnections = len(walletEvents)

	var connectTimes []float64
	uniqueWallets := map[string]struct{}{}
	for _, e := range walletEvents {
		a.WalletDataQuality.TotalAttempts++
		if e.WalletType != "" {
			a.WalletDataQuality.HasWalletTypes++
		}
		if e.Duration > 0 {
			a.WalletDataQuality.HasDurationData++
		}

		wt := e.WalletType
		if wt == "" {
			wt = "unknown"
		}
		b := a.WalletTypeBreakdown[wt]
		if b == nil {
			b = &WalletTypeStats{}
			a.WalletTypeBreakdown[wt] = b
		}
		b.Attempts++

		if e.Succeeded() {
			a.WalletDataQuality.SuccessfulAttempts++
			b.Successes++
			if e.Duration > 0 {
				connectTimes = append(connectTimes, e.Duration)
			}
			if e.WalletAddress != "" {
				uniqueWallets[e.WalletAddress] = struct{}{}
			}
			continue
		}
		a.WalletDataQuality.FailedAttempts++
		b.Failures++
		if e.Error != nil {
			a.WalletDataQuality.HasErrorDetails++
			a.WalletErrorCategories[e.Error.Subtype]++
		} else {
			a.WalletErrorCategories["unknown"]++
		}
	}
	if len(connectTimes) > 0 {
		a.WalletConnectAvgTime = mean(connectTimes)
	}
	a.UniqueWallets = len(uniqueWallets)
}

func computeInteractions(a *Aggregate, byKind map[event.Kind][]event.Event) {
	a.ErrorCategories = map[string]int{}
	for _, e := range byKind[event.KindInteraction] {
		if !e.Failed() && e.Error == nil {
			continue
		}
		switch e.Action {
		case "mine":
			a.InteractionErrors.Mine++
		case "stake", "staking":
			a.InteractionErrors.Stake++
		case "claim":
			a.InteractionErrors.Claim++
		case "unstake":
			a.InteractionErrors.Unstake++
		case "vesting":
			a.InteractionErrors.Vesting++
		}
		category := string(event.CategoryUnknown)
		if e.Error != nil && e.Error.Category != "" {
			category = string(e.Error.Category)
		}
		a.ErrorCategories[category]++
	}
}

func computeRPC(a *Aggregate, byKind map[event.Kind][]event.Event) {
	rpcEvents := byKind[event.KindRPC]
	a.RPCMethodBreakdown = []RPCMethodStats{}
	if len(rpcEvents) == 0 {
		return
	}

	var times []float64
	type methodAcc struct {
		count         int
		totalDuration float64
		errors        int
	}
	methods := map[string]*methodAcc{}
	var methodOrder []string
	successes := 0

	for _, e := range rpcEvents {
		if e.Duration > 0 {
			times = append(times, e.Duration)
		}
		if !e.Failed() {
			successes++
		}
		m := e.Method
		if m == "" {
			m = "unknown"
		}
		acc := methods[m]
		if acc == nil {
			acc = &methodAcc{}
			methods[m] = acc
			methodOrder = append(methodOrder, m)
		}
		acc.count++
		acc.totalDuration += e.Duration
		if e.Failed() {
			acc.errors++
		}
	}

	if len(times) > 0 {
		sort.Float64s(times)
		a.RPCLatencyAvg = mean(times)
		a.RPCLatencyP50 = percentile(times, 0.5)
		a.RPCLatencyP95 = percentile(times, 0.95)
		a.RPCLatencyMax = times[len(times)-1]
		a.RPCLatencyMin = times[0]
	}
	a.RPCSuccessRate = float64(successes) / float64(len(rpcEvents)) * 100

	sort.Strings(methodOrder)
	for _, m := range methodOrder {
		acc := methods[m]
		a.RPCMethodBreakdown = append(a.RPCMethodBreakdown, RPCMethodStats{
			Method:      m,
			Count:       acc.count,
			AvgDuration: acc.totalDuration / float64(acc.count),
			ErrorRate:   float64(acc.errors) / float64(acc.count) * 100,
		})
	}
}

func computeTransactions(a *Aggregate, byKind map[event.Kind][]event.Event) {
	txEvents := byKind[event.KindTransaction]
	for _, e := range byKind[event.KindInteraction] {
		if e.TxHash != "" {
			txEvents = append(txEvents, e)
		}
	}
	if len(txEvents) == 0 {
		return
	}

	successes := 0
	var gas []float64
	for _, e := range txEvents {
		if e.Succeeded() {
			successes++
		}
		if e.GasUsed > 0 {
			gas = append(gas, float64(e.GasUsed))
		}
	}
	a.TransactionSuccessRate = float64(successes) / float64(len(txEvents)) * 100
	a.TotalTransactions = len(txEvents)
	if len(gas) > 0 {
		sort.Float64s(gas)
		a.AvgGasUsed = mean(gas)
		a.MaxGasUsed = gas[len(gas)-1]
		a.MinGasUsed = gas[0]
	}
}

func computeEngagement(a *Aggregate, events []event.Event, byKind map[event.Kind][]event.Event) {
	uniqueSessions := map[string]struct{}{}
	widgetLoads := 0
	for _, e := range events {
		if event.Classify(e) != event.KindCustom {
			continue
		}
		if e.EventName != "widget_init" && e.EventName != "health_check_init" {
			continue
		}
		widgetLoads++
		if e.SessionID != "" {
			uniqueSessions[e.SessionID] = struct{}{}
		}
		if e.WidgetID != "" {
			uniqueSessions[e.WidgetID] = struct{}{}
		}
	}

	walletConnects := byKind[event.KindWalletConnect]
	successfulConnects := 0
	for _, e := range walletConnects {
		if e.Succeeded() {
			successfulConnects++
		}
	}
	interactions := len(byKind[event.KindInteraction])

	a.UserVolume = UserVolume{
		WidgetLoads:       widgetLoads,
		WalletConnects:    len(walletConnects),
		UniqueWidgets:     len(uniqueSessions),
		TotalInteractions: interactions,
	}
	if widgetLoads > 0 {
		a.UserVolume.ConversionRates.WalletConnectRate = float64(len(walletConnects)) / float64(widgetLoads) * 100
	}
	if successfulConnects > 0 {
		a.UserVolume.ConversionRates.InteractionRate = float64(interactions) / float64(successfulConnects) * 100
	}
	a.UniqueSessions = len(uniqueSessions)
}

func computeSessions(a *Aggregate, events []event.Event) {
	var interactions, errors, rpcCalls, sessions int
	for _, e := range events {
		if e.EventName != "session_summary" || e.Session == nil {
			continue
		}
		sessions++
		interactions += e.Session.Interactions
		errors += e.Session.Errors
		rpcCalls += e.Session.RPCCalls
	}
	if sessions == 0 {
		return
	}
	a.AvgInteractionsPerSession = float64(interactions) / float64(sessions)
	a.AvgErrorsPerSession = float64(errors) / float64(sessions)
	a.AvgRPCCallsPerSession = float64(rpcCalls) / float64(sessions)
}

func computePageLoad(a *Aggregate, events []event.Event) {
	var times []float64
	for _, e := range events {
		if e.EventName != "page_load_performance" && e.EventName != "resource_load" {
			continue
		}
		t := e.PageLoadMS
		if t == 0 {
			t = e.Duration
		}
		if t > 0 {
			times = append(times, t)
		}
	}
	if len(times) == 0 {
		return
	}
	sort.Float64s(times)
	a.AvgPageLoadTime = mean(times)
	a.MaxPageLoadTime = times[len(times)-1]
	a.MinPageLoadTime = times[0]
}

// webVitalNames limits which web_vital_* events are aggregated.
var webVitalNames = []string{"lcp", "fcp", "fid", "cls"}

func computeWebVitals(a *Aggregate, events []event.Event) {
	values := map[string][]float64{}
	for _, e := range events {
		for _, name := range webVitalNames {
			if e.EventName == "web_vital_"+name && e.Value > 0 {
				values[name] = append(values[name], e.Value)
			}
		}
	}
	if len(values) == 0 {
		return
	}
	a.WebVitals = map[string]Vital{}
	for name, vs := range values {
		sort.Float64s(vs)
		a.WebVitals[name] = Vital{
			Avg:   mean(vs),
			P50:   percentile(vs, 0.5),
			Count: len(vs),
		}
	}
}

func mean(vs []float64) float64 {
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

// percentile indexes into an ascending slice at floor(n*p). Small
// samples bias low, matching how the dashboard has always read these
// numbers.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

type rateSource int

const (
	sourceNeutral rateSource = iota
	sourceBaseline
	sourceWindow
)

// fallbackRate resolves a success rate when the period itself has no
// samples: live window first, persisted baseline second, neutral
// default last.
func fallbackRate(w *rolling.State, known *KnownRate, neutral float64) (float64, rateSource) {
	if r := w.Rates(); r != nil {
		return r.SuccessRate, sourceWindow
	}
	if known != nil {
		return known.SuccessRate, sourceBaseline
	}
	return neutral, sourceNeutral
}
