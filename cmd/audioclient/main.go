// Command audioclient drives a full capture session against a running
// service: it reads a WAV file, feeds the audio in paced chunks over the
// session API and prints the finalized transcript and delivery report.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// WAV header is 44 bytes for standard PCM files
const wavHeaderSize = 44

// Stream audio in chunks to simulate real-time capture.
// At 16kHz 16-bit mono = 32000 bytes/second; 100ms chunks = 3200 bytes.
const chunkSize = 3200
const chunkIntervalMs = 100

type snapshot struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type stopResponse struct {
	SessionID  string `json:"sessionId"`
	Transcript struct {
		Segments []struct {
			Text  string  `json:"text"`
			Start float64 `json:"start"`
			End   float64 `json:"end"`
		} `json:"segments"`
	} `json:"transcript"`
	Report struct {
		Speech struct {
			WordsPerMinute float64 `json:"wordsPerMinute"`
			SpeakingRate   string  `json:"speakingRate"`
		} `json:"speech"`
		Fillers struct {
			FillerPercentage float64 `json:"fillerPercentage"`
			Grade            string  `json:"grade"`
		} `json:"fillers"`
		DeliveryScore float64  `json:"deliveryScore"`
		Coaching      []string `json:"coaching"`
	} `json:"report"`
	UsedBatch bool `json:"usedBatch"`
}

func main() {
	audioFile := flag.String("audio", "testdata/sample-16khz.wav", "Path to WAV file (16kHz 16-bit mono)")
	serverURL := flag.String("server", "http://localhost:8080", "Session API base URL")
	language := flag.String("language", "", "Target language hint")
	features := flag.String("features", "", "Comma-separated advanced features (e.g. sentiment,chapters)")
	flag.Parse()

	f, err := os.Open(*audioFile)
	if err != nil {
		log.Fatalf("Failed to open audio file: %v", err)
	}
	defer f.Close()

	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(f, header); err != nil {
		log.Fatalf("Failed to read WAV header: %v", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		log.Fatal("Not a valid WAV file")
	}

	audioFormat := binary.LittleEndian.Uint16(header[20:22])
	numChannels := binary.LittleEndian.Uint16(header[22:24])
	sampleRate := binary.LittleEndian.Uint32(header[24:28])
	bitsPerSample := binary.LittleEndian.Uint16(header[34:36])

	log.Printf("WAV file: format=%d channels=%d sampleRate=%d bitsPerSample=%d",
		audioFormat, numChannels, sampleRate, bitsPerSample)
	if audioFormat != 1 { // PCM
		log.Fatal("Only PCM format supported")
	}

	client := resty.New().SetBaseURL(*serverURL).SetTimeout(5 * time.Minute)

	createBody := map[string]any{
		"encoding":   "pcm_s16le",
		"sampleRate": int(sampleRate),
		"bitDepth":   int(bitsPerSample),
		"channels":   int(numChannels),
	}
	if *language != "" {
		createBody["language"] = *language
	}
	if *features != "" {
		createBody["features"] = strings.Split(*features, ",")
	}

	var sess snapshot
	resp, err := client.R().SetBody(createBody).SetResult(&sess).Post("/v1/sessions")
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}
	if resp.IsError() {
		log.Fatalf("Create session rejected: %s %s", resp.Status(), resp.String())
	}
	log.Printf("Session created: id=%s status=%s", sess.ID, sess.Status)

	audioChunk := make([]byte, chunkSize)
	var totalBytes int64
	var chunkNum int
	startTime := time.Now()

	for {
		n, err := f.Read(audioChunk)
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("Failed to read audio: %v", err)
		}

		chunkNum++
		totalBytes += int64(n)

		resp, err := client.R().
			SetHeader("Content-Type", "application/octet-stream").
			SetBody(audioChunk[:n]).
			Post("/v1/sessions/" + sess.ID + "/audio")
		if err != nil {
			log.Fatalf("Failed to feed chunk %d: %v", chunkNum, err)
		}
		if resp.IsError() {
			log.Fatalf("Feed rejected: %s %s", resp.Status(), resp.String())
		}

		if chunkNum%10 == 0 {
			log.Printf("Sent chunk %d (%d bytes total)", chunkNum, totalBytes)
		}

		// Simulate real-time capture
		time.Sleep(chunkIntervalMs * time.Millisecond)
	}

	elapsed := time.Since(startTime)
	log.Printf("Finished feeding: %d chunks, %d bytes in %v", chunkNum, totalBytes, elapsed)
	log.Println("Stopping session, waiting for transcription...")

	var result stopResponse
	resp, err = client.R().SetResult(&result).Post("/v1/sessions/" + sess.ID + "/stop")
	if err != nil {
		log.Fatalf("Failed to stop session: %v", err)
	}
	if resp.IsError() {
		log.Fatalf("Stop rejected: %s %s", resp.Status(), resp.String())
	}

	fmt.Printf("\nSession %s completed (batch path used: %v)\n\n", result.SessionID, result.UsedBatch)
	for _, seg := range result.Transcript.Segments {
		fmt.Printf("  [%6.2fs - %6.2fs] %s\n", seg.Start, seg.End, seg.Text)
	}
	fmt.Printf("\nDelivery score: %.1f / 25\n", result.Report.DeliveryScore)
	fmt.Printf("Pace: %.0f WPM (%s), fillers: %.1f%% (%s)\n",
		result.Report.Speech.WordsPerMinute, result.Report.Speech.SpeakingRate,
		result.Report.Fillers.FillerPercentage, result.Report.Fillers.Grade)
	for _, tip := range result.Report.Coaching {
		fmt.Printf("  - %s\n", tip)
	}
}
