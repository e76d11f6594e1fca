package main

import (
	"flag"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/voxaris/vxsip"
	"github.com/voxaris/vxsip/sip"
	"github.com/voxaris/vxsip/siptest"
)

func main() {
	debflag := flag.Bool("debug", false, "")
	metrics := flag.String("metrics", "", "Expose /metrics on this address, e.g. :8080")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "2006-01-02 15:04:05.000",
	}).With().Timestamp().Logger().Level(zerolog.InfoLevel)
	if *debflag {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	}

	if flag.NArg() < 1 {
		log.Fatal().Msg("usage: sipdump [-debug] [-metrics addr] capture-file")
	}

	reg := vxsip.NewRegistry(
		vxsip.WithLogger(log.Logger),
		vxsip.WithMetrics(prometheus.DefaultRegisterer),
		vxsip.WithStateCallback(func(d *vxsip.Dialog, msg *sip.Message, prev, cur vxsip.DialogState) {
			log.Info().
				Str("prev", prev.String()).
				Str("state", cur.String()).
				Msg("dialog state change")
		}),
	)

	if *metrics != "" {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			log.Info().Msgf("Http server started address=%s", *metrics)
			if err := http.ListenAndServe(*metrics, nil); err != nil {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		log.Fatal().Err(err).Msg("cannot open capture")
	}
	defer f.Close()

	parser := sip.NewParser(sip.WithParserLogger(log.Logger))
	for i, raw := range siptest.ReadMessages(f, nil) {
		msg, err := parser.ParseSIP(raw)
		if err != nil {
			log.Error().Err(err).Int("msg", i).Msg("parse failed")
			continue
		}
		dumpMessage(msg, i)
		if d := reg.Find(msg); d != nil {
			log.Info().Int("msg", i).Str("state", d.State().String()).Msg("matches tracked dialog")
			d.Release()
		}
	}
}

func dumpMessage(msg *sip.Message, i int) {
	ev := log.Info().Int("msg", i).Int("len", msg.Len())
	if ok, _ := msg.IsRequest(); ok {
		m, _ := msg.RequestMethod()
		uri, _ := msg.RequestURIBytes()
		ev = ev.Str("method", string(m)).Bytes("uri", uri)
	} else {
		code, _ := msg.ResponseCode()
		ev = ev.Int("code", code)
	}
	if callid, err := msg.CallID(); err == nil {
		ev = ev.Bytes("callid", callid)
	}
	if num, err := msg.CSeqNum(); err == nil && num >= 0 {
		m, _ := msg.CSeqMethod()
		ev = ev.Int("cseq", num).Str("cseq-method", string(m))
	}
	ev.Msg("parsed")
}
