package metrics

import "github.com/prometheus/client_golang/prometheus"

// Jobs agrupa os contadores comuns a todos os workers de jobs
type Jobs struct {
	Consumed *prometheus.CounterVec // por kind
	Errors   *prometheus.CounterVec // por estágio
	Retried  prometheus.Counter
	Dead     prometheus.Counter
}

// NewJobs registra os contadores com o prefixo do worker (ex.: "settlement")
func NewJobs(reg prometheus.Registerer, prefix string) *Jobs {
	m := &Jobs{
		Consumed: prometheus.NewCounterVec(prometheus.CounterOpts{Name: prefix + "_jobs_consumed_total", Help: "jobs consumidos"}, []string{"kind"}),
		Errors:   prometheus.NewCounterVec(prometheus.CounterOpts{Name: prefix + "_job_errors_total", Help: "erros por estágio"}, []string{"stage"}),
		Retried:  prometheus.NewCounter(prometheus.CounterOpts{Name: prefix + "_jobs_retried_total", Help: "jobs reenfileirados"}),
		Dead:     prometheus.NewCounter(prometheus.CounterOpts{Name: prefix + "_jobs_dead_total", Help: "jobs esgotados (DLQ ou descartados)"}),
	}
	reg.MustRegister(m.Consumed, m.Errors, m.Retried, m.Dead)
	return m
}
