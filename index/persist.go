package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vitalsim/dialograg/corpus"
)

// ErrCorruptIndex 持久化索引三件套缺失或互不一致。
// 遇到该错误时服务必须拒绝启动并提示重建索引。
var ErrCorruptIndex = errors.New("persisted index is missing or inconsistent, rebuild the index")

// 持久化三件套文件名。三个文件总是一起写出、一起加载。
const (
	vectorsFile   = "vectors.json"
	slotMapFile   = "slot_map.json"
	documentsFile = "documents.json"
)

// persistedVectors 向量结构的磁盘形态。
type persistedVectors struct {
	Kind       string      `json:"kind"` // flat 或 ivf
	Dimensions int         `json:"dimensions"`
	Vectors    [][]float64 `json:"vectors"`
	// IVF 专用字段。
	NProbe    int         `json:"nprobe,omitempty"`
	Centroids [][]float64 `json:"centroids,omitempty"`
	Lists     [][]int     `json:"lists,omitempty"`
}

// Save 把快照写入目录：vectors.json、slot_map.json、documents.json。
func Save(dir string, snap *Snapshot) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	var pv persistedVectors
	switch idx := snap.Index.(type) {
	case *FlatIndex:
		pv = persistedVectors{Kind: "flat", Dimensions: idx.dim, Vectors: idx.vectors}
	case *IVFIndex:
		pv = persistedVectors{
			Kind:       "ivf",
			Dimensions: idx.dim,
			Vectors:    idx.vectors,
			NProbe:     idx.nprobe,
			Centroids:  idx.centroids,
			Lists:      idx.lists,
		}
	default:
		return fmt.Errorf("unsupported index type %T", snap.Index)
	}

	if err := writeJSON(filepath.Join(dir, vectorsFile), pv); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, slotMapFile), snap.SlotMap); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, documentsFile), snap.Documents); err != nil {
		return err
	}
	return nil
}

// Load 从目录加载三件套并校验一致性。任一文件缺失、
// 或向量数 / 槽位映射 / 文档数组规模不匹配都是致命错误。
func Load(dir string) (*Snapshot, error) {
	var pv persistedVectors
	if err := readJSON(filepath.Join(dir, vectorsFile), &pv); err != nil {
		return nil, err
	}
	var slotMap []int
	if err := readJSON(filepath.Join(dir, slotMapFile), &slotMap); err != nil {
		return nil, err
	}
	var docs []corpus.Document
	if err := readJSON(filepath.Join(dir, documentsFile), &docs); err != nil {
		return nil, err
	}

	if len(pv.Vectors) != len(slotMap) {
		return nil, fmt.Errorf("%w: %d vectors but %d slot map entries", ErrCorruptIndex, len(pv.Vectors), len(slotMap))
	}
	for slot, docID := range slotMap {
		if docID < 0 || docID >= len(docs) {
			return nil, fmt.Errorf("%w: slot %d maps to document %d out of %d", ErrCorruptIndex, slot, docID, len(docs))
		}
	}

	var idx VectorIndex
	switch pv.Kind {
	case "flat":
		idx = NewFlatIndex(pv.Vectors)
	case "ivf":
		if len(pv.Centroids) == 0 || len(pv.Lists) != len(pv.Centroids) {
			return nil, fmt.Errorf("%w: malformed IVF structure", ErrCorruptIndex)
		}
		total := 0
		for _, list := range pv.Lists {
			for _, slot := range list {
				if slot < 0 || slot >= len(pv.Vectors) {
					return nil, fmt.Errorf("%w: IVF list references slot %d out of %d", ErrCorruptIndex, slot, len(pv.Vectors))
				}
			}
			total += len(list)
		}
		if total != len(pv.Vectors) {
			return nil, fmt.Errorf("%w: IVF lists cover %d slots, expected %d", ErrCorruptIndex, total, len(pv.Vectors))
		}
		idx = &IVFIndex{
			dim:       pv.Dimensions,
			nprobe:    pv.NProbe,
			centroids: pv.Centroids,
			lists:     pv.Lists,
			vectors:   pv.Vectors,
		}
	default:
		return nil, fmt.Errorf("%w: unknown index kind %q", ErrCorruptIndex, pv.Kind)
	}

	return &Snapshot{Index: idx, SlotMap: slotMap, Documents: docs}, nil
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: missing %s", ErrCorruptIndex, filepath.Base(path))
		}
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: cannot parse %s: %v", ErrCorruptIndex, filepath.Base(path), err)
	}
	return nil
}
