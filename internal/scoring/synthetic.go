package scoring

import (
	"math"
	"math/rand"
)

// GenerateSynthetic samples n "normal" feature vectors from smooth
// per-feature distributions, in the extractor's schema order. It is used to
// bootstrap a usable model before real traffic accumulates.
func GenerateSynthetic(n int, seed int64) [][]float64 {
	r := rand.New(rand.NewSource(seed))
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = []float64{
			float64(1024 + r.Intn(65535-1024)), // src_port: ephemeral range
			float64(1 + r.Intn(65535)),         // dst_port
			lognormal(r, 6.5, 1.0),             // packet_size, median ~665 bytes
			r.ExpFloat64() * 1.0,               // duration seconds
			r.ExpFloat64() * 10000,             // flow_bytes_per_sec
			r.ExpFloat64() * 100,               // flow_packets_per_sec
			r.ExpFloat64() * 12,                // fwd_packets
			r.ExpFloat64() * 8,                 // bwd_packets
		}
	}
	return rows
}

func lognormal(r *rand.Rand, mu, sigma float64) float64 {
	return math.Exp(r.NormFloat64()*sigma + mu)
}
