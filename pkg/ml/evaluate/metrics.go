package evaluate

type ClassReport struct {
	Class     int     `json:"class"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

type Report struct {
	Accuracy  float64       `json:"accuracy"`
	MacroF1   float64       `json:"macro_f1"`
	Classes   []ClassReport `json:"classes"`
	Confusion [][]int       `json:"confusion"`
}

func Accuracy(truth, pred []int) float64 {
	if len(truth) == 0 {
		return 0
	}
	var correct int
	for i := range truth {
		if truth[i] == pred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(truth))
}

// ConfusionMatrix counts truth (rows) against prediction (columns).
func ConfusionMatrix(truth, pred []int, classes int) [][]int {
	for i := range truth {
		if truth[i] >= classes {
			classes = truth[i] + 1
		}
		if pred[i] >= classes {
			classes = pred[i] + 1
		}
	}
	m := make([][]int, classes)
	for i := range m {
		m[i] = make([]int, classes)
	}
	for i := range truth {
		m[truth[i]][pred[i]]++
	}
	return m
}

// MacroF1 averages per-class F1 over the classes that appear in either the
// truth or the predictions.
func MacroF1(truth, pred []int, classes int) float64 {
	return Classify(truth, pred, classes).MacroF1
}

func Classify(truth, pred []int, classes int) Report {
	cm := ConfusionMatrix(truth, pred, classes)
	report := Report{Accuracy: Accuracy(truth, pred), Confusion: cm}
	var sum float64
	var present int
	for c := range cm {
		tp := cm[c][c]
		var actual, predicted int
		for k := range cm {
			actual += cm[c][k]
			predicted += cm[k][c]
		}
		if actual == 0 && predicted == 0 {
			continue
		}
		row := ClassReport{Class: c, Support: actual}
		if predicted > 0 {
			row.Precision = float64(tp) / float64(predicted)
		}
		if actual > 0 {
			row.Recall = float64(tp) / float64(actual)
		}
		if row.Precision+row.Recall > 0 {
			row.F1 = 2 * row.Precision * row.Recall / (row.Precision + row.Recall)
		}
		report.Classes = append(report.Classes, row)
		sum += row.F1
		present++
	}
	if present > 0 {
		report.MacroF1 = sum / float64(present)
	}
	return report
}
