package joint

import (
	"fmt"
	"log"

	"github.com/tticoin/JointER/alg/learning"
	"github.com/tticoin/JointER/alg/search"
	"github.com/tticoin/JointER/alg/sequence"
)

// Evaluator scores entities by exact span and type, and relations by
// their label and the exact spans and types of both arguments
type Evaluator struct{}

var _ learning.Evaluator = Evaluator{}

// Decoder is an instance that can build the sentence a label describes
type Decoder interface {
	sequence.Instance
	Sentence() *Sentence
	Decode(label sequence.Label) *Sentence
}

func (Evaluator) Evaluate(predicted []*search.State) []learning.Score {
	entity := learning.Score{Name: "Entity"}
	relation := learning.Score{Name: "Relation"}
	var entities bool
	for i, s := range predicted {
		if s == nil {
			log.Println("No prediction for instance", i)
			continue
		}
		d, ok := s.Instance().(Decoder)
		if !ok {
			panic(fmt.Sprintf("joint evaluation of unknown instance %T", s.Instance()))
		}
		gold, pred := d.Sentence(), d.Decode(s.Label())
		if _, ok := d.(*Instance); ok {
			entities = true
			count(&entity, entityKeys(gold), entityKeys(pred))
		}
		count(&relation, relationKeys(gold), relationKeys(pred))
	}
	if !entities {
		return []learning.Score{relation}
	}
	return []learning.Score{entity, relation}
}

func count(score *learning.Score, gold, pred map[string]bool) {
	score.Gold += len(gold)
	score.Predicted += len(pred)
	for k := range pred {
		if gold[k] {
			score.Correct++
		}
	}
}

func entityKey(e Entity) string {
	return fmt.Sprintf("%d-%d:%s", e.Start, e.End, e.Type)
}

func entityKeys(s *Sentence) map[string]bool {
	keys := make(map[string]bool)
	for _, e := range s.Entities() {
		keys[entityKey(e)] = true
	}
	return keys
}

// relationKeys skips relations whose words do not end an entity
func relationKeys(s *Sentence) map[string]bool {
	ends := s.entityEnds()
	keys := make(map[string]bool)
	for _, r := range s.Relations {
		e1, ok1 := ends[r.W1]
		e2, ok2 := ends[r.W2]
		if !ok1 || !ok2 {
			continue
		}
		keys[entityKey(e1)+" "+entityKey(e2)+" "+r.Label.Relation()] = true
	}
	return keys
}
