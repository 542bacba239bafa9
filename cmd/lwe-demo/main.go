// Command lwe-demo walks through the scheme end to end: key generation,
// encryption of a message, addition and bootstrapping of the first two
// ciphertexts, and decryption.
//
// Usage:
//
//	lwe-demo -msg Hello -preset PN256Q40961 -cpuprofile cpu.prof
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/luxfi/lwe"
	"github.com/luxfi/lwe/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		msg        = flag.String("msg", "Hello", "message to encrypt")
		paramsPath = flag.String("params", "", "parameter file (YAML or JSON)")
		preset     = flag.String("preset", "", "parameter preset, used when -params is empty")
		cpuProfile = flag.String("cpuprofile", "", "write CPU profile to file")
		memProfile = flag.String("memprofile", "", "write heap profile to file")
	)
	flag.Parse()

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			return fmt.Errorf("create CPU profile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("start CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	params, err := config.Resolve(*paramsPath, *preset)
	if err != nil {
		return fmt.Errorf("load parameters: %w", err)
	}
	fmt.Printf("Parameters: %s\n", params)

	start := time.Now()
	keys := lwe.NewKeyGenerator(params).GenKeyBundle()
	fmt.Printf("Key bundle %s generated in %v\n", keys.ID, time.Since(start))

	enc := lwe.NewEncryptor(params, keys.PublicKey)
	dec := lwe.NewDecryptor(params, keys.SecretKey)
	eval := lwe.NewEvaluator(params, keys.EvaluationKeySet())

	start = time.Now()
	cts, err := enc.EncryptString(*msg)
	if err != nil {
		return fmt.Errorf("encrypt: %w", err)
	}
	fmt.Printf("Encrypted %q into %d ciphertexts in %v\n", *msg, len(cts), time.Since(start))
	if len(cts) < 2 {
		return errors.New("message too short: need at least two bits")
	}

	head := cts[0].Vector()
	if len(head) > 10 {
		head = head[:10]
	}
	fmt.Printf("Encrypted (first block): %v\n", head)

	sum, err := eval.Add(cts[0], cts[1])
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}
	bit, err := dec.DecryptBit(sum)
	if err != nil {
		return fmt.Errorf("decrypt sum: %w", err)
	}
	fmt.Printf("Sum of first two blocks decrypts to %d (noise bound %.1f of %.1f)\n",
		bit, sum.NoiseBound, params.NoiseThreshold())

	start = time.Now()
	refreshed, err := eval.Bootstrap(sum)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	fmt.Printf("Bootstrapped in %v (noise bound %.1f)\n", time.Since(start), refreshed.NoiseBound)
	if bit, err := dec.DecryptBit(refreshed); err != nil {
		fmt.Printf("Bootstrapped block: %v\n", err)
	} else {
		fmt.Printf("Bootstrapped block decrypts to %d\n", bit)
	}

	text, err := dec.DecryptString(cts)
	if err != nil {
		return fmt.Errorf("decrypt: %w", err)
	}
	fmt.Printf("Decrypted: %q (match: %v)\n", text, text == *msg)

	data, err := lwe.EncodeText(*msg)
	if err != nil {
		return err
	}
	stats, err := dec.NoiseStats(cts, lwe.BytesToBits(data))
	if err != nil {
		return fmt.Errorf("noise: %w", err)
	}
	fmt.Printf("Noise: %s\n", stats)

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			return fmt.Errorf("create memory profile: %w", err)
		}
		defer f.Close()
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			return fmt.Errorf("write memory profile: %w", err)
		}
		log.Printf("Heap profile written to %s", *memProfile)
	}

	return nil
}
