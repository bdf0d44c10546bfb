package service

import "grocery-fleet/internal/domain"

// Filter returns the items whose aisle equals aisle exactly, in broadcast order.
// No case folding or trimming is applied.
func Filter(b domain.OrderBroadcast, aisle string) []domain.LineItem {
	var matched []domain.LineItem
	for _, it := range b.Items {
		if it.Aisle == aisle {
			matched = append(matched, it)
		}
	}
	return matched
}

// Aggregate builds the report for matched items. A SKU seen twice keeps the
// quantity of its last occurrence.
func Aggregate(b domain.OrderBroadcast, robot domain.Robot, matched []domain.LineItem) domain.JobStatusReport {
	processed := make(map[string]int32, len(matched))
	for _, it := range matched {
		processed[it.SKU] = it.Quantity
	}
	status := domain.StatusNoOp
	if len(matched) > 0 {
		status = domain.StatusSuccess
	}
	return domain.JobStatusReport{
		SchemaVersion:  domain.SchemaVersion,
		OrderID:        b.OrderID,
		OrderType:      b.OrderType,
		RobotID:        robot.ID,
		Aisle:          robot.Aisle,
		Status:         status,
		ProcessedItems: processed,
	}
}

// Process is Filter followed by Aggregate for a robot assigned to aisle.
func Process(b domain.OrderBroadcast, aisle string) domain.JobStatusReport {
	r := domain.Robot{Aisle: aisle}
	return Aggregate(b, r, Filter(b, aisle))
}
