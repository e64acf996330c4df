package main

import (
	"log"

	"github.com/finbridge/go-bitfinex-bridge/config"
	promclient "github.com/finbridge/go-bitfinex-bridge/infrastructure/prometheus"
	"github.com/finbridge/go-bitfinex-bridge/provider/bitfinex"
	"github.com/finbridge/go-bitfinex-bridge/rest"
	"github.com/finbridge/go-bitfinex-bridge/usecase"
)

func main() {
	conf := config.Load()

	streamClient := bitfinex.NewStreamClient(conf.BitfinexWsURL)
	if err := streamClient.Connect(); err != nil {
		log.Fatalf("failed to connect to bitfinex stream: %s", err)
	}

	syncAPI := bitfinex.NewSyncAPI(conf.BitfinexRestURL)
	streamAPI := bitfinex.NewStreamAPI(streamClient)

	marketData := usecase.NewMarketDataUseCase(syncAPI, streamAPI, conf.EffectivePriceMarketDepth)
	defer marketData.Close()

	go promclient.StartPromClientServer(":" + conf.MetricsPort)

	server := rest.NewServer(marketData, conf.Port)
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("http server stopped: %s", err)
	}
}
