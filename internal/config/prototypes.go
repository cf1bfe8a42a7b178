package config

import "path/filepath"

// DefaultPrototype is the prototype used when none is requested.
const DefaultPrototype = "wmt15_fi_en_40k"

var prototypes = map[string]func() Config{
	"wmt15_fi_en_40k":  wmt15FiEn40k,
	"wmt15_fi_en_TEST": wmt15FiEnTest,
}

const wmt15Dir = "data/wmt15/fi-en"

func wmt15FiEn40k() Config {
	processed := filepath.Join(wmt15Dir, "processed")
	return Config{
		SeqLen:   50,
		EncNHids: 1000,
		DecNHids: 1000,
		EncEmbed: 620,
		DecEmbed: 620,
		SaveTo:   "refBlocks3",

		BatchSize:    80,
		SortKBatches: 12,
		StepRule:     "AdaDelta",
		StepClipping: 10,
		WeightScale:  0.01,
		LearningRate: 1,
		Gradient:     "spsa",
		Seed:         1234,

		Dropout: 1.0,

		Stream:       "fi-en",
		SrcVocab:     filepath.Join(processed, "vocab.fi.json"),
		TrgVocab:     filepath.Join(processed, "vocab.en.json"),
		SrcData:      filepath.Join(processed, "all.tok.clean.shuf.seg1.fi-en.fi"),
		TrgData:      filepath.Join(processed, "all.tok.clean.shuf.fi-en.en"),
		SrcVocabSize: 40001,
		TrgVocabSize: 40001,
		UnkID:        1,

		NormalizedBleu:  true,
		ValSet:          filepath.Join(wmt15Dir, "dev", "newsdev2015_1.tok.seg.fi"),
		ValSetGrndtruth: filepath.Join(wmt15Dir, "dev", "newsdev2015_1.tok.en"),
		ValSetOut:       filepath.Join("refBlocks3", "adadelta_40k_out.txt"),
		OutputValSet:    true,
		BeamSize:        20,
		BleuPatience:    10,

		Reload:       true,
		SaveFreq:     50,
		SamplingFreq: 1,
		BleuValFreq:  2000,
		ValBurnIn:    50000,

		HookSamples: 1,
	}
}

func wmt15FiEnTest() Config {
	c := wmt15FiEn40k()
	c.EncNHids = 100
	c.DecNHids = 100
	c.EncEmbed = 62
	c.DecEmbed = 62
	c.SaveTo = "refBlocks3_TEST"

	c.BatchSize = 8
	c.SrcVocabSize = 501
	c.TrgVocabSize = 501

	c.ValSet = filepath.Join(wmt15Dir, "dev", "newsdev2015_TEST.tok.seg.fi")
	c.ValSetGrndtruth = filepath.Join(wmt15Dir, "dev", "newsdev2015_TEST.tok.en")
	c.ValSetOut = filepath.Join("refBlocks3_TEST", "validation_out.txt")
	c.BeamSize = 2

	c.SaveFreq = 1
	c.SamplingFreq = 5
	c.BleuValFreq = 10
	c.ValBurnIn = 0
	return c
}
